package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/observability"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/resilience"
	"github.com/boddenberg/wallet-insights-bfa/internal/insights"
	"github.com/boddenberg/wallet-insights-bfa/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("service/insights")

// SnapshotCache stores transaction snapshots per customer and filter.
type SnapshotCache interface {
	port.Cache[[]domain.Transaction]
	DeletePrefix(prefix string) int
}

// InsightsOptions carries the service defaults.
type InsightsOptions struct {
	// SourceName labels source errors in metrics ("supabase", "transactions-api", "postgres").
	SourceName      string
	Location        *time.Location
	DefaultLanguage string
}

// InsightsService loads a customer's transaction snapshot and aggregates it.
type InsightsService struct {
	source    port.TransactionSource
	snapshots SnapshotCache
	memo      *insights.Memo
	bulkhead  *resilience.Bulkhead
	loads     singleflight.Group
	opts      InsightsOptions
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewInsightsService creates the insights service with all dependencies injected.
func NewInsightsService(
	source port.TransactionSource,
	snapshots SnapshotCache,
	memo *insights.Memo,
	bulkhead *resilience.Bulkhead,
	opts InsightsOptions,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *InsightsService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en-US"
	}
	return &InsightsService{
		source:    source,
		snapshots: snapshots,
		memo:      memo,
		bulkhead:  bulkhead,
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
	}
}

// GetInsights returns the daily series, category summary and transfer total
// for the customer's transactions under query.
func (s *InsightsService) GetInsights(ctx context.Context, customerID string, query domain.InsightsQuery) (*domain.Insights, error) {
	ctx, span := tracer.Start(ctx, "InsightsService.GetInsights")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("insights", time.Since(start)) }()

	if err := validateQuery(customerID, query); err != nil {
		s.metrics.IncrRequest("error")
		return nil, err
	}
	query.Filter.WalletIDs = normalizeWallets(query.Filter.WalletIDs)

	snapshot, err := s.loadSnapshot(ctx, customerID, query.Filter)
	if err != nil {
		s.metrics.IncrRequest("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot load failed")
		s.logger.Error("insights: snapshot load failed",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("loading transactions: %w", err)
	}

	txns := applyFilter(snapshot, query.Filter)
	s.metrics.ObserveTransactions(len(txns))

	result, hit := s.memo.Aggregate(txns, insights.NewDayFormatter(s.location(query)))
	if hit {
		s.metrics.IncrCacheHit(observability.CacheMemo)
	} else {
		s.metrics.IncrCacheMiss(observability.CacheMemo)
	}
	s.metrics.IncrRequest("success")

	span.SetAttributes(
		attribute.Int("transactions", len(txns)),
		attribute.Int("days", len(result.DailyTransactionAmountArray)),
		attribute.Bool("memo.hit", hit),
	)
	s.logger.Debug("insights computed",
		zap.String("customer_id", customerID),
		zap.Int("transactions", len(txns)),
		zap.Int("days", len(result.DailyTransactionAmountArray)),
		zap.Int("categories", len(result.SortedCategories)),
		zap.Bool("memo_hit", hit),
	)

	return result, nil
}

// GetInsightsView renders GetInsights for display in lang (default language
// when empty).
func (s *InsightsService) GetInsightsView(ctx context.Context, customerID string, query domain.InsightsQuery, lang string) (*domain.InsightsView, error) {
	ctx, span := tracer.Start(ctx, "InsightsService.GetInsightsView")
	defer span.End()

	result, err := s.GetInsights(ctx, customerID, query)
	if err != nil {
		return nil, err
	}

	if lang == "" {
		lang = s.opts.DefaultLanguage
	}
	span.SetAttributes(attribute.String("lang", lang))
	return insights.BuildView(result, insights.NewCurrencyFormatter(lang), lang), nil
}

// Aggregate computes insights over caller-supplied transactions without
// touching the source or caches.
func (s *InsightsService) Aggregate(ctx context.Context, txns []domain.Transaction, query domain.InsightsQuery) (*domain.Insights, error) {
	_, span := tracer.Start(ctx, "InsightsService.Aggregate")
	defer span.End()
	span.SetAttributes(attribute.Int("transactions", len(txns)))

	if err := validateWindow(query.Filter); err != nil {
		return nil, err
	}

	filtered := applyFilter(txns, query.Filter)
	s.metrics.ObserveTransactions(len(filtered))
	return insights.Aggregate(filtered, insights.NewDayFormatter(s.location(query))), nil
}

// Invalidate drops every cached snapshot of customerID (implements port.Invalidator).
func (s *InsightsService) Invalidate(customerID string) {
	n := s.snapshots.DeletePrefix(snapshotPrefix(customerID))
	s.metrics.IncrInvalidation()
	s.logger.Info("insights: snapshots invalidated",
		zap.String("customer_id", customerID),
		zap.Int("entries", n),
	)
}

// Ping reports whether the transaction source is reachable. Sources that
// cannot be pinged are assumed healthy.
func (s *InsightsService) Ping(ctx context.Context) error {
	if p, ok := s.source.(port.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// SourceName returns the metrics label of the configured source.
func (s *InsightsService) SourceName() string {
	return s.opts.SourceName
}

// Location returns the default time zone for day bucketing.
func (s *InsightsService) Location() *time.Location {
	return s.opts.Location
}

func (s *InsightsService) location(q domain.InsightsQuery) *time.Location {
	if q.Location != nil {
		return q.Location
	}
	return s.opts.Location
}

// loadSnapshot returns the cached snapshot or fetches it once for all
// concurrent callers with the same key.
func (s *InsightsService) loadSnapshot(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	key := snapshotKey(customerID, filter)
	if cached, ok := s.snapshots.Get(key); ok {
		s.metrics.IncrCacheHit(observability.CacheSnapshot)
		return cached, nil
	}
	s.metrics.IncrCacheMiss(observability.CacheSnapshot)

	// The shared fetch must not die with whichever caller started it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(key, func() (any, error) {
		txns, err := s.fetch(fetchCtx, customerID, filter)
		if err != nil {
			return nil, err
		}
		s.snapshots.Set(key, txns)
		return txns, nil
	})

	select {
	case <-ctx.Done():
		return nil, &domain.ErrTimeout{Operation: "load transactions"}
	case res := <-ch:
		if res.Err != nil {
			s.recordSourceError(res.Err)
			return nil, res.Err
		}
		return res.Val.([]domain.Transaction), nil
	}
}

// fetch queries the source once, or once per wallet in parallel when the
// filter names several, merging the results chronologically.
func (s *InsightsService) fetch(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if len(filter.WalletIDs) <= 1 {
		return s.fetchOne(ctx, customerID, filter)
	}

	parts := make([][]domain.Transaction, len(filter.WalletIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, walletID := range filter.WalletIDs {
		g.Go(func() error {
			f := filter
			f.WalletIDs = []string{walletID}
			txns, err := s.fetchOne(gctx, customerID, f)
			if err != nil {
				return fmt.Errorf("wallet %s: %w", walletID, err)
			}
			parts[i] = txns
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := slices.Concat(parts...)
	slices.SortStableFunc(merged, func(a, b domain.Transaction) int {
		return a.PaidAt.Compare(b.PaidAt)
	})
	return merged, nil
}

func (s *InsightsService) fetchOne(ctx context.Context, customerID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: "acquire source slot"}
	}
	defer s.bulkhead.Release()

	return s.source.ListTransactions(ctx, customerID, filter)
}

func (s *InsightsService) recordSourceError(err error) {
	var ext *domain.ErrExternalService
	var open *domain.ErrCircuitOpen
	if errors.As(err, &ext) || errors.As(err, &open) {
		s.metrics.IncrExternalError(s.opts.SourceName)
	}
}

func validateQuery(customerID string, q domain.InsightsQuery) error {
	if strings.TrimSpace(customerID) == "" {
		return &domain.ErrValidation{Field: "customerId", Message: "must not be empty"}
	}
	for _, id := range q.Filter.WalletIDs {
		if strings.TrimSpace(id) == "" {
			return &domain.ErrValidation{Field: "wallet", Message: "must not contain empty ids"}
		}
	}
	return validateWindow(q.Filter)
}

func validateWindow(f domain.TransactionFilter) error {
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return &domain.ErrValidation{Field: "to", Message: "must be after from"}
	}
	return nil
}

// applyFilter re-applies the filter in case the source ignored part of it.
func applyFilter(txns []domain.Transaction, f domain.TransactionFilter) []domain.Transaction {
	if len(f.WalletIDs) == 0 && f.From.IsZero() && f.To.IsZero() {
		return txns
	}
	out := make([]domain.Transaction, 0, len(txns))
	for _, t := range txns {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// normalizeWallets returns the ids sorted and deduplicated.
func normalizeWallets(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func snapshotPrefix(customerID string) string {
	return "snapshot:" + customerID + ":"
}

// snapshotKey identifies a customer+filter snapshot. Wallet order does not
// matter.
func snapshotKey(customerID string, f domain.TransactionFilter) string {
	wallets := normalizeWallets(f.WalletIDs)

	var sb strings.Builder
	sb.WriteString(snapshotPrefix(customerID))
	sb.WriteString("w=")
	sb.WriteString(strings.Join(wallets, ","))
	sb.WriteString(";from=")
	if !f.From.IsZero() {
		sb.WriteString(strconv.FormatInt(f.From.UnixNano(), 10))
	}
	sb.WriteString(";to=")
	if !f.To.IsZero() {
		sb.WriteString(strconv.FormatInt(f.To.UnixNano(), 10))
	}
	return sb.String()
}
