package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/infra/observability"
	"github.com/boddenberg/chimu-org-go/internal/port"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GuardedStore decorates a remote CustomerStore with a circuit breaker, a
// concurrency cap and retries for reads. Writes are never retried here;
// the reconciler is idempotent and callers retry whole requests.
type GuardedStore struct {
	next     port.CustomerStore
	name     string
	cfg      Config
	cb       *gobreaker.CircuitBreaker
	bulkhead *Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// txGuardedStore is returned when the wrapped store supports transactions,
// so port.RunInTx still detects them through the decorator.
type txGuardedStore struct {
	*GuardedStore
	tx port.Transactor
}

// NewGuardedStore wraps next. The returned store implements port.Transactor
// exactly when next does.
func NewGuardedStore(next port.CustomerStore, name string, cfg Config, metrics *observability.Metrics, logger *zap.Logger) port.CustomerStore {
	if cfg.Retryable == nil {
		cfg.Retryable = isTransient
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, wait time.Duration, err error) {
			logger.Debug("retrying store read",
				zap.String("store", name),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}
	}
	g := &GuardedStore{
		next:    next,
		name:    name,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
	g.cb = NewCircuitBreaker(name, cfg.Breaker, isHealthy, func(name string, from, to gobreaker.State) {
		logger.Warn("store circuit state changed",
			zap.String("store", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})
	if cfg.MaxConcurrency > 0 {
		g.bulkhead = NewBulkhead(cfg.MaxConcurrency)
	}
	if tx, ok := next.(port.Transactor); ok {
		return &txGuardedStore{GuardedStore: g, tx: tx}
	}
	return g
}

func (g *GuardedStore) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var out *domain.Customer
	err := g.read(ctx, "find", func(ctx context.Context) error {
		c, err := g.next.FindByEmail(ctx, email)
		out = c
		return err
	})
	return out, err
}

func (g *GuardedStore) FindMany(ctx context.Context, f domain.CustomerFilter) ([]domain.Customer, error) {
	var out []domain.Customer
	err := g.read(ctx, "find_many", func(ctx context.Context) error {
		list, err := g.next.FindMany(ctx, f)
		out = list
		return err
	})
	return out, err
}

func (g *GuardedStore) Create(ctx context.Context, c *domain.Customer) error {
	return g.write(ctx, "create", func(ctx context.Context) error { return g.next.Create(ctx, c) })
}

func (g *GuardedStore) Save(ctx context.Context, c *domain.Customer) error {
	return g.write(ctx, "save", func(ctx context.Context) error { return g.next.Save(ctx, c) })
}

func (g *GuardedStore) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	var n int64
	err := g.write(ctx, "delete", func(ctx context.Context) error {
		var err error
		n, err = g.next.DeleteByEmail(ctx, email)
		return err
	})
	return n, err
}

func (g *GuardedStore) Ping(ctx context.Context) error {
	return g.write(ctx, "ping", g.next.Ping)
}

// RunInTx hands fn to the wrapped store's transaction. Individual store
// calls inside fn still pass through the breaker.
func (t *txGuardedStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.tx.RunInTx(ctx, fn)
}

func (g *GuardedStore) read(ctx context.Context, op string, fn func(context.Context) error) error {
	err := RetryWithBackoff(ctx, g.cfg, func() error { return g.execute(ctx, fn) })
	return g.translate(ctx, op, err)
}

func (g *GuardedStore) write(ctx context.Context, op string, fn func(context.Context) error) error {
	return g.translate(ctx, op, g.execute(ctx, fn))
}

func (g *GuardedStore) execute(ctx context.Context, fn func(context.Context) error) error {
	if g.bulkhead != nil {
		if err := g.bulkhead.Acquire(ctx); err != nil {
			return err
		}
		defer g.bulkhead.Release()
	}
	_, err := g.cb.Execute(func() (any, error) { return nil, fn(ctx) })
	return err
}

// translate maps breaker and context failures onto domain errors and wraps
// unknown backend errors. Domain errors pass through untouched.
func (g *GuardedStore) translate(ctx context.Context, op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		g.logger.Warn("store circuit open", zap.String("store", g.name), zap.String("op", op))
		return &domain.ErrCircuitOpen{Service: g.name}
	case errors.Is(err, context.DeadlineExceeded):
		g.metrics.IncrStoreError(op)
		return &domain.ErrTimeout{Operation: g.name + "." + op}
	case errors.Is(err, context.Canceled):
		return err
	}

	g.metrics.IncrStoreError(op)
	g.logger.Error("store call failed", zap.String("store", g.name), zap.String("op", op), zap.Error(err))
	var sf *domain.ErrStoreFailure
	if errors.As(err, &sf) {
		return err
	}
	return &domain.ErrStoreFailure{Op: op, Err: err}
}

// isHealthy tells the breaker which errors are answers, not outages.
func isHealthy(err error) bool {
	return err == nil || isDomainError(err)
}

func isDomainError(err error) bool {
	var (
		nf  *domain.ErrNotFound
		dup *domain.ErrDuplicateKey
		ve  *domain.ErrValidation
	)
	return errors.As(err, &nf) || errors.As(err, &dup) || errors.As(err, &ve)
}

func isTransient(err error) bool {
	if isDomainError(err) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
