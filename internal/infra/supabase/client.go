// Package supabase provides a client for Supabase (PostgREST).
// Used as the default data backend for wallet transactions.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

const (
	transactionsTable = "wallet_transactions"
	transactionsCols  = "id,wallet_id,amount,paid_at,category,destination_wallet_id,description"
	serviceName       = "supabase"
)

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// doRequest executes an authenticated GET against Supabase PostgREST.
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading supabase response: %w", err)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: request OK",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// walletTransactionRow maps wallet_transactions columns.
type walletTransactionRow struct {
	ID                  string          `json:"id"`
	WalletID            string          `json:"wallet_id"`
	Amount              decimal.Decimal `json:"amount"`
	PaidAt              time.Time       `json:"paid_at"`
	Category            *string         `json:"category"`
	DestinationWalletID *string         `json:"destination_wallet_id"`
	Description         *string         `json:"description"`
}

func (r walletTransactionRow) toDomain() domain.Transaction {
	t := domain.Transaction{
		ID:                  r.ID,
		WalletID:            r.WalletID,
		Amount:              r.Amount,
		PaidAt:              r.PaidAt,
		DestinationWalletID: r.DestinationWalletID,
	}
	if r.Category != nil {
		t.Category = *r.Category
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	return t
}

// TransactionsPath builds the PostgREST path for a customer's transactions,
// pushing the wallet and date window down to the database.
func TransactionsPath(customerID string, filter domain.TransactionFilter) string {
	q := url.Values{}
	q.Set("select", transactionsCols)
	q.Set("customer_id", "eq."+customerID)
	if len(filter.WalletIDs) > 0 {
		q.Set("wallet_id", "in.("+strings.Join(filter.WalletIDs, ",")+")")
	}
	if !filter.From.IsZero() {
		q.Add("paid_at", "gte."+filter.From.UTC().Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		q.Add("paid_at", "lt."+filter.To.UTC().Format(time.RFC3339))
	}
	q.Set("order", "paid_at.asc,id.asc")
	return transactionsTable + "?" + q.Encode()
}

// ListTransactions fetches the customer's wallet transactions matching filter
// (implements port.TransactionSource). A customer with no rows gets an empty
// slice.
func (c *Client) ListTransactions(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.id", customerID),
		attribute.Int("wallets", len(filter.WalletIDs)),
	)

	path := TransactionsPath(customerID, filter)

	txns, err := resilience.Call(ctx, c.cb, c.cfg, serviceName, func(ctx context.Context) ([]domain.Transaction, error) {
		body, err := c.doRequest(ctx, path)
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return []domain.Transaction{}, nil
		}

		var rows []walletTransactionRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode transactions: %w", err)
		}

		out := make([]domain.Transaction, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.toDomain())
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

// Ping checks that PostgREST answers for the transactions table.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, err := c.doRequest(ctx, transactionsTable+"?select=id&limit=1")
	if err != nil {
		span.RecordError(err)
		return &domain.ErrExternalService{Service: serviceName, Err: err}
	}
	return nil
}
