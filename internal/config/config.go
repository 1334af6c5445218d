package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverSupabase = "supabase"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	StoreDriver       string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL       string `env:"DATABASE_URL"`
	MongoURI          string `env:"MONGO_URI"`
	MongoDatabase     string `env:"MONGO_DATABASE" envDefault:"chimu"`
	MongoTransactions bool   `env:"MONGO_TRANSACTIONS" envDefault:"false"`

	// Supabase (PostgREST)
	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseAnonKey    string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`

	// HTTP client
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	// Resilience
	MaxRetries     int           `env:"MAX_RETRIES" envDefault:"3"`
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"100ms"`
	MaxConcurrency int           `env:"MAX_CONCURRENCY" envDefault:"20"`

	// Cache
	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Observability
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Auth (verification only)
	JWTSecret string `env:"JWT_SECRET"`

	// Hierarchy
	TreeMaxDepth         int    `env:"TREE_MAX_DEPTH" envDefault:"5"`
	TreeFetchConcurrency int    `env:"TREE_FETCH_CONCURRENCY" envDefault:"8"`
	ImportEmailDomain    string `env:"IMPORT_EMAIL_DOMAIN" envDefault:"example.com"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks that the selected driver has what it needs.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver %q", c.StoreDriver)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for store driver %q", c.StoreDriver)
		}
	case DriverSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for store driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.TreeMaxDepth < 0 {
		return fmt.Errorf("TREE_MAX_DEPTH must be >= 0")
	}
	if c.TreeFetchConcurrency < 1 {
		return fmt.Errorf("TREE_FETCH_CONCURRENCY must be >= 1")
	}
	return nil
}
