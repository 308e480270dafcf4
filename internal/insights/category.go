package insights

import (
	"slices"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

// BuildCategorySummary sums amounts per category. The Transfer category is
// pulled out as its own total (nil when no transaction carries it); the rest
// is sorted by total, largest first, ties kept in first-seen order.
func BuildCategorySummary(txns []domain.Transaction) (*decimal.Decimal, []domain.CategoryTotal) {
	groups := GroupBy(txns, func(t domain.Transaction) string {
		return t.Category
	})

	var transfer *decimal.Decimal
	categories := make([]domain.CategoryTotal, 0, groups.Len())
	for _, name := range groups.Keys() {
		bucket, _ := groups.Get(name)
		total := sum(bucket)

		if name == domain.TransferCategory {
			transfer = &total
			continue
		}
		categories = append(categories, domain.CategoryTotal{Category: name, Total: total})
	}

	slices.SortStableFunc(categories, func(a, b domain.CategoryTotal) int {
		return b.Total.Cmp(a.Total)
	})
	return transfer, categories
}

func sum(txns []domain.Transaction) decimal.Decimal {
	var total decimal.Decimal
	for _, t := range txns {
		total = total.Add(t.Amount)
	}
	return total
}
