package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Insights (aggregation output)
// ============================================================

// DailyPoint is one chart sample: a day's inflow and outflow.
// Day may be blank when the axis label is thinned out.
type DailyPoint struct {
	Day      string          `json:"day"`
	Incoming decimal.Decimal `json:"incoming"`
	Outgoing decimal.Decimal `json:"outgoing"` // zero or negative
}

// CategoryTotal is the raw signed sum of a category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// Insights is the full aggregation result for a transaction snapshot.
type Insights struct {
	DailyTransactionAmountArray []DailyPoint     `json:"dailyTransactionAmountArray"`
	SortedCategories            []CategoryTotal  `json:"sortedCategories"`
	TotalTransfer               *decimal.Decimal `json:"totalTransfer"`
}

// InsightsQuery scopes an insights request.
type InsightsQuery struct {
	Filter   TransactionFilter
	Location *time.Location // day bucketing; nil = service default
}

// ============================================================
// Presentation view
// ============================================================

// InsightsView is what the insights screen draws.
// Sections are nil when the screen suppresses them.
type InsightsView struct {
	Language   string             `json:"language"`
	Charts     []ChartSeries      `json:"charts,omitempty"`
	Transfer   *TransferRow       `json:"transfer,omitempty"`
	Categories []CategoryRow      `json:"categories,omitempty"`
	Summary    *InsightsViewTotal `json:"summary,omitempty"`
}

// ChartSeries is one line chart.
type ChartSeries struct {
	Title  string    `json:"title"` // DEBIT, CREDIT
	Tone   string    `json:"tone"`  // positive, negative
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// TransferRow is the "Total Transfers" row.
type TransferRow struct {
	Label     string  `json:"label"`
	Amount    float64 `json:"amount"`
	Formatted string  `json:"formatted"`
}

// CategoryRow is one row of the category list.
type CategoryRow struct {
	Category  string  `json:"category"`
	Total     float64 `json:"total"`
	Formatted string  `json:"formatted"`
}

// InsightsViewTotal summarizes the charted cash flow.
type InsightsViewTotal struct {
	Incoming          string `json:"incoming"`
	Outgoing          string `json:"outgoing"`
	DaysWithActivity  int    `json:"daysWithActivity"`
	CategoriesTracked int    `json:"categoriesTracked"`
}
