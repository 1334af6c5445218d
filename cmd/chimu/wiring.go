package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/chimu-org-go/internal/config"
	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/infra/cache"
	"github.com/boddenberg/chimu-org-go/internal/infra/memstore"
	chimumongo "github.com/boddenberg/chimu-org-go/internal/infra/mongo"
	"github.com/boddenberg/chimu-org-go/internal/infra/observability"
	"github.com/boddenberg/chimu-org-go/internal/infra/postgres"
	"github.com/boddenberg/chimu-org-go/internal/infra/resilience"
	"github.com/boddenberg/chimu-org-go/internal/infra/supabase"
	"github.com/boddenberg/chimu-org-go/internal/port"
	"github.com/boddenberg/chimu-org-go/internal/service"

	"go.uber.org/zap"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	store   port.CustomerStore
	svc     *service.CustomerService

	closers []func(context.Context) error
}

func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// loadConfig reads dotenv files, then the environment.
func loadConfig(envFiles []string) (*config.Config, error) {
	if _, err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, envFiles []string) (*app, error) {
	cfg, err := loadConfig(envFiles)
	if err != nil {
		return nil, err
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_driver", cfg.StoreDriver),
		zap.Bool("redis_cache", cfg.RedisURL != ""),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("tree_max_depth", cfg.TreeMaxDepth),
		zap.Bool("auth", cfg.JWTSecret != ""),
	)

	a := &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "chimu-org")
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	// --- Store ---
	if err := a.openStore(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	// --- Cache ---
	var accounts port.Cache[[]domain.Customer]
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis[[]domain.Customer](cfg.RedisURL, "chimu:", cfg.CacheTTL, logger)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
		accounts = rc
		logger.Info("account cache: redis")
	} else {
		mc := cache.New[[]domain.Customer](cfg.CacheTTL)
		a.closers = append(a.closers, func(context.Context) error { mc.Close(); return nil })
		accounts = mc
		logger.Info("account cache: in-memory")
	}

	// --- Services ---
	trees := service.NewTreeBuilder(a.store, cfg.TreeMaxDepth, cfg.TreeFetchConcurrency, logger)
	a.svc = service.NewCustomerService(a.store, trees, accounts, a.metrics, logger)
	return a, nil
}

// openStore connects the configured backend. Remote backends are wrapped
// with retries, a circuit breaker and a bulkhead.
func (a *app) openStore(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	guard := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		a.store = memstore.New()

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		a.store = resilience.NewGuardedStore(postgres.New(pool, logger), "postgres", guard, a.metrics, logger)
		logger.Info("using postgres store")

	case config.DriverMongo:
		client, err := chimumongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Disconnect)
		db := client.Database(cfg.MongoDatabase)
		var store port.CustomerStore
		if cfg.MongoTransactions {
			store, err = chimumongo.NewTx(ctx, client, db, logger)
		} else {
			store, err = chimumongo.New(ctx, db, logger)
		}
		if err != nil {
			return err
		}
		a.store = resilience.NewGuardedStore(store, "mongo", guard, a.metrics, logger)
		logger.Info("using mongo store",
			zap.String("database", cfg.MongoDatabase),
			zap.Bool("transactions", cfg.MongoTransactions),
		)

	case config.DriverSupabase:
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		client := supabase.NewClient(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey, logger)
		a.store = resilience.NewGuardedStore(client, "supabase", guard, a.metrics, logger)
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))

	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	return nil
}
