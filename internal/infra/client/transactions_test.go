package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/client"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/resilience"
)

func newTransactionsClient(t *testing.T, srv *httptest.Server) *client.TransactionsClient {
	t.Helper()
	return client.NewTransactionsClient(
		srv.Client(),
		srv.URL,
		resilience.NewCircuitBreaker("test-txclient-"+t.Name()),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
	)
}

func TestTransactionsClient_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/customers/cust-1/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("wallet") != "w1,w2" {
			t.Errorf("expected wallet param, got '%s'", q.Get("wallet"))
		}
		if q.Get("from") != "2024-03-01T00:00:00Z" {
			t.Errorf("expected from param, got '%s'", q.Get("from"))
		}
		if q.Has("to") {
			t.Error("expected no upper bound")
		}
		w.Write([]byte(`[
			{"id":"t1","walletId":"w1","amount":"10.25","paidAt":"2024-03-07T10:00:00Z","category":"Food"},
			{"id":"t2","walletId":"w2","amount":-4,"paidAt":"2024-03-07T11:00:00Z","category":"Transfer","destinationWalletId":"w1"}
		]`))
	}))
	defer srv.Close()

	txns, err := newTransactionsClient(t, srv).ListTransactions(context.Background(), "cust-1", domain.TransactionFilter{
		WalletIDs: []string{"w1", "w2"},
		From:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txns))
	}
	if txns[0].Amount.String() != "10.25" {
		t.Errorf("expected 10.25, got %s", txns[0].Amount)
	}
	if !txns[1].IsTransfer() {
		t.Error("expected second transaction to be a transfer")
	}
}

func TestTransactionsClient_NotFoundIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTransactionsClient(t, srv).ListTransactions(context.Background(), "ghost", domain.TransactionFilter{})

	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestTransactionsClient_RetriesThenFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTransactionsClient(t, srv).ListTransactions(context.Background(), "cust-1", domain.TransactionFilter{})

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestTransactionsClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := newTransactionsClient(t, srv).Ping(context.Background()); err != nil {
		t.Errorf("expected healthy upstream, got %v", err)
	}
}
