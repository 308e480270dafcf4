// Package client holds HTTP clients for upstream BFA dependencies.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("client")

const transactionsService = "transactions-api"

// TransactionsClient fetches wallet transactions from the Transactions API.
type TransactionsClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewTransactionsClient creates a new TransactionsClient.
func NewTransactionsClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *TransactionsClient {
	return &TransactionsClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
	}
}

// ListTransactions fetches customer transactions with retry, circuit breaker,
// and tracing (implements port.TransactionSource). An unknown customer is
// reported as *domain.ErrNotFound.
func (c *TransactionsClient) ListTransactions(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionsClient.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	reqURL := c.transactionsURL(customerID, filter)

	txns, err := resilience.Call(ctx, c.cb, c.cfg, transactionsService, func(ctx context.Context) ([]domain.Transaction, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, &domain.ErrNotFound{Resource: "transactions", ID: customerID}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("transactions API returned status %d", resp.StatusCode)
		}

		out := []domain.Transaction{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decoding transactions: %w", err)
		}
		return out, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list transactions failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("transactions", len(txns)))
	return txns, nil
}

// Ping checks the Transactions API health endpoint.
func (c *TransactionsClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ErrExternalService{Service: transactionsService, Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &domain.ErrExternalService{
			Service: transactionsService,
			Err:     fmt.Errorf("health returned status %d", resp.StatusCode),
		}
	}
	return nil
}

func (c *TransactionsClient) transactionsURL(customerID string, filter domain.TransactionFilter) string {
	u := fmt.Sprintf("%s/v1/customers/%s/transactions", c.baseURL, url.PathEscape(customerID))

	q := url.Values{}
	if len(filter.WalletIDs) > 0 {
		q.Set("wallet", strings.Join(filter.WalletIDs, ","))
	}
	if !filter.From.IsZero() {
		q.Set("from", filter.From.UTC().Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		q.Set("to", filter.To.UTC().Format(time.RFC3339))
	}
	if len(q) == 0 {
		return u
	}
	return u + "?" + q.Encode()
}
