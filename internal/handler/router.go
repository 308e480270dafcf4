package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/observability"
	"github.com/boddenberg/wallet-insights-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// A nil tokens service disables authentication on the customer routes.
func NewRouter(svc *service.InsightsService, tokens *service.TokenService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc, logger))
	r.Get("/readyz", readyzHandler(svc, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// GET /v1/metrics/insights
		r.Get("/metrics/insights", insightsMetricsHandler(metrics))

		// POST /v1/insights/aggregate
		r.Group(func(r chi.Router) {
			if tokens != nil {
				r.Use(JWTAuthMiddleware(tokens, logger))
			}
			r.Post("/insights/aggregate", aggregateHandler(svc, logger))
		})

		// GET /v1/customers/{customerId}/insights[/daily|/categories|/view]
		r.Route("/customers/{customerId}", func(r chi.Router) {
			if tokens != nil {
				r.Use(JWTAuthMiddleware(tokens, logger))
				r.Use(CustomerScopeMiddleware(logger))
			}
			r.Get("/insights", getInsightsHandler(svc, logger))
			r.Get("/insights/daily", getDailySeriesHandler(svc, logger))
			r.Get("/insights/categories", getCategoriesHandler(svc, logger))
			r.Get("/insights/view", getInsightsViewHandler(svc, logger))
		})
	})

	return r
}

// ============================================================
// Metrics & Health
// ============================================================

func healthzHandler(svc *service.InsightsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if svc != nil {
			start := time.Now()
			err := svc.Ping(r.Context())
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("healthz: source check failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name:        svc.SourceName(),
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overallStatus = s.Status
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(svc *service.InsightsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc != nil {
			if err := svc.Ping(r.Context()); err != nil {
				logger.Warn("readyz: source not ready", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func insightsMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
