package supabase_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/resilience"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/supabase"

	"go.uber.org/zap"
)

const rowsJSON = `[
	{"id":"t1","wallet_id":"w1","amount":120.50,"paid_at":"2024-03-07T10:00:00Z","category":"Salary","destination_wallet_id":null,"description":"March"},
	{"id":"t2","wallet_id":"w1","amount":"-30","paid_at":"2024-03-07T12:00:00Z","category":null,"destination_wallet_id":null,"description":null},
	{"id":"t3","wallet_id":"w1","amount":-50,"paid_at":"2024-03-08T09:00:00Z","category":"Transfer","destination_wallet_id":"w2","description":"savings"}
]`

func newClient(t *testing.T, srv *httptest.Server) *supabase.Client {
	t.Helper()
	return supabase.NewClient(
		srv.Client(),
		srv.URL+"/",
		"anon-key",
		"service-key",
		resilience.NewCircuitBreaker("test-supabase-"+t.Name()),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)
}

func TestListTransactions(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/wallet_transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("expected apikey header, got '%s'", r.Header.Get("apikey"))
		}
		if r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("expected bearer header, got '%s'", r.Header.Get("Authorization"))
		}
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(rowsJSON))
	}))
	defer srv.Close()

	c := newClient(t, srv)
	txns, err := c.ListTransactions(context.Background(), "cust-1", domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotQuery.Get("customer_id") != "eq.cust-1" {
		t.Errorf("expected customer filter, got '%s'", gotQuery.Get("customer_id"))
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txns))
	}
	if txns[0].Amount.String() != "120.5" {
		t.Errorf("expected 120.5, got %s", txns[0].Amount)
	}
	if txns[1].Category != "" {
		t.Errorf("expected null category to map to empty string, got '%s'", txns[1].Category)
	}
	if txns[1].Amount.String() != "-30" {
		t.Errorf("expected -30 from a quoted numeric, got %s", txns[1].Amount)
	}
	if !txns[2].IsTransfer() || *txns[2].DestinationWalletID != "w2" {
		t.Error("expected third row to be a transfer to w2")
	}
	if txns[0].IsTransfer() {
		t.Error("expected first row not to be a transfer")
	}
}

func TestListTransactions_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	txns, err := newClient(t, srv).ListTransactions(context.Background(), "cust-1", domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if txns == nil || len(txns) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", txns)
	}
}

func TestListTransactions_UpstreamError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).ListTransactions(context.Background(), "cust-1", domain.TransactionFilter{})

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if ext.Service != "supabase" {
		t.Errorf("expected service 'supabase', got '%s'", ext.Service)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts with one retry, got %d", calls)
	}
}

func TestListTransactions_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv).ListTransactions(context.Background(), "cust-1", domain.TransactionFilter{})
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTransactionsPath(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	path := supabase.TransactionsPath("cust-1", domain.TransactionFilter{
		WalletIDs: []string{"w1", "w2"},
		From:      from,
		To:        to,
	})

	table, rawQuery, ok := strings.Cut(path, "?")
	if !ok || table != "wallet_transactions" {
		t.Fatalf("unexpected path %s", path)
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		t.Fatalf("bad query: %v", err)
	}

	if q.Get("wallet_id") != "in.(w1,w2)" {
		t.Errorf("expected wallet filter, got '%s'", q.Get("wallet_id"))
	}
	paidAt := q["paid_at"]
	if len(paidAt) != 2 {
		t.Fatalf("expected two paid_at bounds, got %v", paidAt)
	}
	if paidAt[0] != "gte.2024-03-01T00:00:00Z" {
		t.Errorf("unexpected lower bound %s", paidAt[0])
	}
	if paidAt[1] != "lt.2024-04-01T03:00:00Z" {
		t.Errorf("expected upper bound converted to UTC, got %s", paidAt[1])
	}
	if q.Get("order") != "paid_at.asc,id.asc" {
		t.Errorf("unexpected order %s", q.Get("order"))
	}
}

func TestTransactionsPath_NoFilter(t *testing.T) {
	path := supabase.TransactionsPath("cust-1", domain.TransactionFilter{})
	if strings.Contains(path, "wallet_id") || strings.Contains(path, "paid_at=") {
		t.Errorf("expected no wallet or date filters, got %s", path)
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("expected limit=1, got %s", r.URL.RawQuery)
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	if err := newClient(t, srv).Ping(context.Background()); err != nil {
		t.Errorf("expected ping to succeed, got %v", err)
	}
}

func TestPing_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := newClient(t, srv).Ping(context.Background()); err == nil {
		t.Error("expected ping to fail")
	}
}
