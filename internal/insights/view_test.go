package insights_test

import (
	"strings"
	"testing"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/insights"

	"github.com/shopspring/decimal"
)

type plainCurrency struct{}

func (plainCurrency) FormatCurrency(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

func TestBuildView_Sections(t *testing.T) {
	txns := []domain.Transaction{
		tx("100", day1, "Food"),
		tx("-50", day1, "Food"),
		tx("-75", day2, "Rent"),
		transfer("-200", day2, "w2"),
	}
	result := insights.Aggregate(txns, utc())

	view := insights.BuildView(result, plainCurrency{}, "en-US")

	if len(view.Charts) != 2 {
		t.Fatalf("expected 2 charts, got %d", len(view.Charts))
	}
	incoming, outgoing := view.Charts[0], view.Charts[1]
	if incoming.Title != insights.IncomingChartTitle || outgoing.Title != insights.OutgoingChartTitle {
		t.Errorf("unexpected chart titles: %s, %s", incoming.Title, outgoing.Title)
	}
	if len(incoming.Labels) != 2 || incoming.Labels[0] != "07 Mar 2024" || incoming.Labels[1] != "" {
		t.Errorf("unexpected labels: %v", incoming.Labels)
	}
	if incoming.Data[0] != 100 || incoming.Data[1] != 0 {
		t.Errorf("unexpected incoming data: %v", incoming.Data)
	}
	if outgoing.Data[0] != -50 || outgoing.Data[1] != -75 {
		t.Errorf("unexpected outgoing data: %v", outgoing.Data)
	}

	if view.Transfer == nil {
		t.Fatal("expected transfer row")
	}
	if view.Transfer.Formatted != "$200.00" {
		t.Errorf("expected absolute transfer '$200.00', got '%s'", view.Transfer.Formatted)
	}

	if len(view.Categories) != 2 {
		t.Fatalf("expected 2 category rows, got %d", len(view.Categories))
	}
	if view.Categories[0].Category != "Food" || view.Categories[0].Formatted != "$50.00" {
		t.Errorf("unexpected first row: %+v", view.Categories[0])
	}
	if view.Categories[1].Formatted != "$-75.00" {
		t.Errorf("expected signed category total, got '%s'", view.Categories[1].Formatted)
	}

	if view.Summary == nil || view.Summary.Incoming != "$100.00" || view.Summary.Outgoing != "$-125.00" {
		t.Errorf("unexpected summary: %+v", view.Summary)
	}
}

func TestBuildView_EmptySuppressesEverything(t *testing.T) {
	view := insights.BuildView(insights.Aggregate(nil, utc()), plainCurrency{}, "en-US")

	if view.Charts != nil {
		t.Errorf("expected no charts, got %v", view.Charts)
	}
	if view.Transfer != nil {
		t.Errorf("expected no transfer row, got %+v", view.Transfer)
	}
	if view.Categories != nil {
		t.Errorf("expected no category rows, got %v", view.Categories)
	}
	if view.Summary != nil {
		t.Errorf("expected no summary, got %+v", view.Summary)
	}
}

func TestBuildView_OnlyTransfers(t *testing.T) {
	view := insights.BuildView(insights.Aggregate([]domain.Transaction{transfer("30", day1, "w2")}, utc()), plainCurrency{}, "en-US")

	if len(view.Charts) != 2 {
		t.Errorf("expected charts for a day with only transfers, got %d", len(view.Charts))
	}
	if view.Transfer == nil {
		t.Error("expected transfer row")
	}
	if view.Categories != nil {
		t.Errorf("expected no category rows, got %v", view.Categories)
	}
}

func TestCurrencyFormatter_Languages(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{lang: "en-US", want: "12.50"},
		{lang: "pt-BR", want: "12,50"},
		{lang: "not a tag", want: "12.50"},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			got := insights.NewCurrencyFormatter(tt.lang).FormatCurrency(dec("12.5"))
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected '%s' to contain '%s'", got, tt.want)
			}
		})
	}
}
