package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Data backends for the transaction snapshot.
const (
	BackendSupabase = "supabase"
	BackendHTTP     = "http"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Transaction source
	DataBackend        string
	TransactionsAPIURL string
	DatabaseURL        string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Insights
	InsightsTimezone string
	DefaultLanguage  string

	// Observability
	OTLPEndpoint string

	// JWT / Auth
	AuthEnabled  bool
	JWTSecret    string
	JWTAccessTTL time.Duration

	// Change events (AMQP). Empty URL disables the consumer.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// LoadDotEnv loads variables from the given .env files (default ".env").
// Variables already present in the environment win.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:        strings.ToLower(getEnv("DATA_BACKEND", BackendSupabase)),
		TransactionsAPIURL: getEnv("TRANSACTIONS_API_URL", "http://localhost:8082"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		InsightsTimezone: getEnv("INSIGHTS_TIMEZONE", "UTC"),
		DefaultLanguage:  getEnv("DEFAULT_LANGUAGE", "en-US"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		AuthEnabled:  getEnvBool("AUTH_ENABLED", false),
		JWTSecret:    getEnv("JWT_SECRET", "bfa-default-dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "wallet.transactions"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "insights.invalidate"),
	}
}

// Validate reports configuration that would fail at runtime.
func (c *Config) Validate() error {
	var errs []error

	switch c.DataBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" {
			errs = append(errs, errors.New("SUPABASE_URL is required for the supabase backend"))
		}
	case BackendHTTP:
		if c.TransactionsAPIURL == "" {
			errs = append(errs, errors.New("TRANSACTIONS_API_URL is required for the http backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DATA_BACKEND %q", c.DataBackend))
	}

	if _, err := time.LoadLocation(c.InsightsTimezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid INSIGHTS_TIMEZONE %q: %w", c.InsightsTimezone, err))
	}
	if c.AuthEnabled && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when AUTH_ENABLED is set"))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency))
	}

	return errors.Join(errs...)
}

// Location returns the configured insights time zone, UTC if it does not load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.InsightsTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
