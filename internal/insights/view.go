package insights

import (
	"github.com/boddenberg/wallet-insights-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

// Chart titles and tones as the screen shows them.
const (
	IncomingChartTitle = "DEBIT"
	OutgoingChartTitle = "CREDIT"
	TransferRowLabel   = "Total Transfers"
)

// BuildView shapes an Insights result into the sections the screen draws.
// Charts are omitted for an empty series, the transfer row when there is no
// transfer total, and the category list when it is empty.
func BuildView(in *domain.Insights, cf CurrencyFormatter, lang string) *domain.InsightsView {
	view := &domain.InsightsView{Language: lang}

	if n := len(in.DailyTransactionAmountArray); n > 0 {
		labels := make([]string, n)
		incoming := make([]float64, n)
		outgoing := make([]float64, n)
		var inTotal, outTotal decimal.Decimal
		for i, p := range in.DailyTransactionAmountArray {
			labels[i] = p.Day
			incoming[i] = p.Incoming.InexactFloat64()
			outgoing[i] = p.Outgoing.InexactFloat64()
			inTotal = inTotal.Add(p.Incoming)
			outTotal = outTotal.Add(p.Outgoing)
		}
		view.Charts = []domain.ChartSeries{
			{Title: IncomingChartTitle, Tone: "positive", Labels: labels, Data: incoming},
			{Title: OutgoingChartTitle, Tone: "negative", Labels: labels, Data: outgoing},
		}
		view.Summary = &domain.InsightsViewTotal{
			Incoming:          cf.FormatCurrency(inTotal),
			Outgoing:          cf.FormatCurrency(outTotal),
			DaysWithActivity:  n,
			CategoriesTracked: len(in.SortedCategories),
		}
	}

	if in.TotalTransfer != nil {
		abs := in.TotalTransfer.Abs()
		view.Transfer = &domain.TransferRow{
			Label:     TransferRowLabel,
			Amount:    abs.InexactFloat64(),
			Formatted: cf.FormatCurrency(abs),
		}
	}

	if len(in.SortedCategories) > 0 {
		view.Categories = make([]domain.CategoryRow, 0, len(in.SortedCategories))
		for _, c := range in.SortedCategories {
			view.Categories = append(view.Categories, domain.CategoryRow{
				Category:  c.Category,
				Total:     c.Total.InexactFloat64(),
				Formatted: cf.FormatCurrency(c.Total),
			})
		}
	}

	return view
}
