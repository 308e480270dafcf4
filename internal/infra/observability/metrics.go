package observability

import (
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Cache labels used by the insights service.
const (
	CacheSnapshot = "snapshot"
	CacheMemo     = "memo"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	transactions    prometheus.Histogram
	requestsTotal   *prometheus.CounterVec
	invalidations   prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from transaction sources.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		transactions: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bfa_insights_transactions",
				Help:    "Number of transactions aggregated per insights request.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
		invalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bfa_insights_invalidations_total",
				Help: "Customer snapshot invalidations.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// ObserveTransactions records the size of an aggregated snapshot.
func (m *Metrics) ObserveTransactions(n int) {
	m.transactions.Observe(float64(n))
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrInvalidation counts a customer snapshot invalidation.
func (m *Metrics) IncrInvalidation() {
	m.invalidations.Inc()
}

// Snapshot returns cumulative insights metrics for GET /v1/metrics/insights.
func (m *Metrics) Snapshot() *domain.InsightsMetrics {
	success := getCounterValue(m.requestsTotal, "success")
	errorCount := getCounterValue(m.requestsTotal, "error")
	totalRequests := success + errorCount

	var sourceErrors float64
	for _, svc := range []string{"supabase", "transactions-api", "postgres"} {
		sourceErrors += getCounterValue(m.externalErrors, svc)
	}

	errorRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}

	return &domain.InsightsMetrics{
		TotalRequests:        int64(totalRequests),
		ErrorRate:            errorRate,
		SnapshotCacheHitRate: hitRate(m, CacheSnapshot),
		MemoHitRate:          hitRate(m, CacheMemo),
		SourceErrors:         int64(sourceErrors),
		TransactionsSeen:     int64(getHistogramSum(m.transactions)),
		Period:               "all_time",
	}
}

func hitRate(m *Metrics, cache string) float64 {
	hits := getCounterValue(m.cacheHits, cache)
	misses := getCounterValue(m.cacheMisses, cache)
	if hits+misses == 0 {
		return 0
	}
	return hits / (hits + misses)
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getHistogramSum(h prometheus.Histogram) float64 {
	m := &dto.Metric{}
	if err := h.Write(m); err != nil {
		return 0
	}
	if m.Histogram != nil && m.Histogram.SampleSum != nil {
		return *m.Histogram.SampleSum
	}
	return 0
}
