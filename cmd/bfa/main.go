package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/config"
	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/handler"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/cache"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/client"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/events"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/observability"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/postgres"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/resilience"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/supabase"
	"github.com/boddenberg/wallet-insights-bfa/internal/insights"
	"github.com/boddenberg/wallet-insights-bfa/internal/port"
	"github.com/boddenberg/wallet-insights-bfa/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("data_backend", cfg.DataBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.String("timezone", cfg.InsightsTimezone),
		zap.String("default_language", cfg.DefaultLanguage),
		zap.Bool("auth_enabled", cfg.AuthEnabled),
		zap.Bool("events_enabled", cfg.AMQPURL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "wallet-insights-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	snapshots := cache.New[[]domain.Transaction](cfg.CacheTTL)
	defer snapshots.Close()
	memoCache := cache.New[*domain.Insights](cfg.CacheTTL)
	defer memoCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("transaction-source")

	// --- Transaction source ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var source port.TransactionSource
	var sourceName string

	switch cfg.DataBackend {
	case config.BackendSupabase:
		logger.Info("using Supabase as transaction source",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		source = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			resilienceCfg,
			logger,
		)
		sourceName = "supabase"
	case config.BackendPostgres:
		logger.Info("using Postgres as transaction source")
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		source = postgres.NewStore(pool, cb, resilienceCfg, logger)
		sourceName = "postgres"
	default:
		logger.Info("using Transactions API as transaction source",
			zap.String("transactions_api_url", cfg.TransactionsAPIURL),
		)
		source = client.NewTransactionsClient(httpClient, cfg.TransactionsAPIURL, cb, resilienceCfg)
		sourceName = "transactions-api"
	}

	// --- Services ---
	insightsSvc := service.NewInsightsService(
		source,
		snapshots,
		insights.NewMemo(memoCache),
		resilience.NewBulkhead(cfg.MaxConcurrency),
		service.InsightsOptions{
			SourceName:      sourceName,
			Location:        cfg.Location(),
			DefaultLanguage: cfg.DefaultLanguage,
		},
		metrics,
		logger,
	)

	var tokens *service.TokenService
	if cfg.AuthEnabled {
		tokens = service.NewTokenService(cfg.JWTSecret, cfg.JWTAccessTTL)
		logger.Info("auth enabled on customer routes")
	} else {
		logger.Warn("auth disabled: customer routes are open")
	}

	// --- Change events ---
	if cfg.AMQPURL != "" {
		consumer := events.NewConsumer(events.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
		}, events.InvalidateHandler(insightsSvc), logger)

		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("events consumer stopped", zap.Error(err))
			}
		}()
		logger.Info("events consumer started",
			zap.String("exchange", cfg.AMQPExchange),
			zap.String("queue", cfg.AMQPQueue),
		)
	}

	// --- Router ---
	router := handler.NewRouter(insightsSvc, tokens, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
