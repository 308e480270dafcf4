package insights_test

import (
	"testing"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/cache"
	"github.com/boddenberg/wallet-insights-bfa/internal/insights"
)

func TestMemo_HitReturnsSameResult(t *testing.T) {
	memo := insights.NewMemo(cache.New[*domain.Insights](5 * time.Minute))
	txns := []domain.Transaction{
		tx("100", day1, "Food"),
		transfer("20", day2, "w2"),
	}

	first, hit := memo.Aggregate(txns, utc())
	if hit {
		t.Fatal("expected a miss on first call")
	}

	// Same content in a fresh slice still hits.
	again := append([]domain.Transaction(nil), txns...)
	second, hit := memo.Aggregate(again, utc())
	if !hit {
		t.Fatal("expected a hit for an identical snapshot")
	}
	if first != second {
		t.Error("expected the memoized result to be returned")
	}
}

func TestMemo_ChangedSnapshotRecomputes(t *testing.T) {
	memo := insights.NewMemo(cache.New[*domain.Insights](5 * time.Minute))
	txns := []domain.Transaction{tx("100", day1, "Food")}

	memo.Aggregate(txns, utc())

	changed := []domain.Transaction{tx("101", day1, "Food")}
	result, hit := memo.Aggregate(changed, utc())
	if hit {
		t.Fatal("expected a miss after the amount changed")
	}
	assertDec(t, "Food", result.SortedCategories[0].Total, "101")
}

func TestFingerprint_SensitiveToInputs(t *testing.T) {
	a := tx("10", day1, "Food")
	b := tx("-5", day2, "Fun")
	base := insights.Fingerprint([]domain.Transaction{a, b}, utc())

	if got := insights.Fingerprint([]domain.Transaction{a, b}, utc()); got != base {
		t.Error("expected equal fingerprints for equal snapshots")
	}
	if got := insights.Fingerprint([]domain.Transaction{b, a}, utc()); got == base {
		t.Error("expected order to change the fingerprint")
	}

	tokyo := insights.NewDayFormatter(time.FixedZone("UTC+9", 9*3600))
	if got := insights.Fingerprint([]domain.Transaction{a, b}, tokyo); got == base {
		t.Error("expected the formatter location to change the fingerprint")
	}

	moved := transfer("10", day1, "w2")
	moved.Category = "Food"
	if got := insights.Fingerprint([]domain.Transaction{moved, b}, utc()); got == base {
		t.Error("expected a destination wallet to change the fingerprint")
	}

	// Field boundaries must not collide.
	x := tx("1", day1, "ab")
	x.ID = "a"
	y := tx("1", day1, "b")
	y.ID = "aa"
	if insights.Fingerprint([]domain.Transaction{x}, utc()) == insights.Fingerprint([]domain.Transaction{y}, utc()) {
		t.Error("expected length-prefixed fields to keep fingerprints apart")
	}
}
