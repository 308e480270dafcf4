// Package insights aggregates wallet transactions into the data behind the
// insights screen: a daily cash-flow series and a per-category summary.
//
// Everything here is pure. Callers own caching; see Memo.
package insights

import (
	"github.com/boddenberg/wallet-insights-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

// BuildDailySeries returns one point per distinct day, in the order each day
// first appears in txns. Transfers count toward neither incoming nor outgoing.
func BuildDailySeries(txns []domain.Transaction, f DayFormatter) []domain.DailyPoint {
	days := GroupBy(txns, func(t domain.Transaction) string {
		return f.FormatDay(t.PaidAt)
	})

	keys := days.Keys()
	points := make([]domain.DailyPoint, 0, len(keys))
	for i, day := range keys {
		bucket, _ := days.Get(day)
		incoming, outgoing := cashFlow(bucket)

		label := ""
		if ShowLabel(i, len(keys)) {
			label = day
		}
		points = append(points, domain.DailyPoint{
			Day:      label,
			Incoming: incoming,
			Outgoing: outgoing,
		})
	}
	return points
}

// cashFlow splits a day's non-transfer amounts by sign.
// Zero amounts land on both sides and change neither.
func cashFlow(txns []domain.Transaction) (incoming, outgoing decimal.Decimal) {
	for _, t := range txns {
		if t.IsTransfer() {
			continue
		}
		if t.Amount.Sign() >= 0 {
			incoming = incoming.Add(t.Amount)
		}
		if t.Amount.Sign() <= 0 {
			outgoing = outgoing.Add(t.Amount)
		}
	}
	return incoming, outgoing
}

// ShowLabel reports whether the axis label at index should be drawn when
// there are n labels. At most three labels survive: the first, the middle,
// and the last (or second to last when n is even).
func ShowLabel(index, n int) bool {
	if n <= 0 {
		return false
	}
	if n%2 == 1 {
		return index == 0 || index == n-1 || index == (n-1)/2
	}
	return index == 0 || index == n-2 || index == (n-1)/2
}
