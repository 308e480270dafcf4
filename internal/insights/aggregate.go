package insights

import (
	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
)

// Aggregate runs both builders over the same snapshot.
func Aggregate(txns []domain.Transaction, f DayFormatter) *domain.Insights {
	transfer, categories := BuildCategorySummary(txns)
	return &domain.Insights{
		DailyTransactionAmountArray: BuildDailySeries(txns, f),
		SortedCategories:            categories,
		TotalTransfer:               transfer,
	}
}
