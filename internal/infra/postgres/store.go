// Package postgres reads wallet transactions straight from Postgres through a
// pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/resilience"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

const serviceName = "postgres"

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Store implements port.TransactionSource over the wallet_transactions table.
type Store struct {
	db     Querier
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

// NewStore creates a Store on top of db.
func NewStore(db Querier, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Store {
	return &Store{db: db, cb: cb, cfg: cfg, logger: logger}
}

// Connect opens a pool and verifies it answers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

// BuildTransactionsQuery returns the SQL and positional args selecting a
// customer's transactions under filter, oldest first.
func BuildTransactionsQuery(customerID string, filter domain.TransactionFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT id::text, wallet_id::text, amount::text, paid_at, ` +
		`coalesce(category, ''), destination_wallet_id::text, coalesce(description, '') ` +
		`FROM wallet_transactions WHERE customer_id::text = $1`)
	args := []any{customerID}

	if len(filter.WalletIDs) > 0 {
		args = append(args, filter.WalletIDs)
		fmt.Fprintf(&sb, " AND wallet_id::text = ANY($%d)", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		fmt.Fprintf(&sb, " AND paid_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		fmt.Fprintf(&sb, " AND paid_at < $%d", len(args))
	}
	sb.WriteString(" ORDER BY paid_at, id")
	return sb.String(), args
}

// ListTransactions implements port.TransactionSource.
func (s *Store) ListTransactions(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	sql, args := BuildTransactionsQuery(customerID, filter)

	txns, err := resilience.Call(ctx, s.cb, s.cfg, serviceName, func(ctx context.Context) ([]domain.Transaction, error) {
		rows, err := s.db.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		return scanTransactions(rows)
	})
	if err != nil {
		s.logger.Error("postgres: list transactions failed",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "list transactions failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("transactions", len(txns)))
	return txns, nil
}

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	out := []domain.Transaction{}
	for rows.Next() {
		var (
			t      domain.Transaction
			amount string
			dest   *string
		)
		if err := rows.Scan(&t.ID, &t.WalletID, &amount, &t.PaidAt, &t.Category, &dest, &t.Description); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: bad amount %q: %w", t.ID, amount, err)
		}
		t.Amount = d
		t.DestinationWalletID = dest
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return &domain.ErrExternalService{Service: serviceName, Err: err}
	}
	return nil
}
