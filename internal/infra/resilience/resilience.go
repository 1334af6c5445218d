// Package resilience guards calls to remote customer stores: capped
// exponential retries, a circuit breaker and a concurrency bulkhead.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds resilience parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	// MaxBackoff caps a single wait. Zero means 32x InitialBackoff.
	MaxBackoff     time.Duration
	MaxConcurrency int
	// Retryable reports whether a failed attempt is worth repeating.
	// Nil retries every error.
	Retryable func(error) bool
	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
	Breaker BreakerConfig
}

// BreakerConfig tunes the circuit breaker. Zero fields take the defaults
// noted on each field.
type BreakerConfig struct {
	MinRequests  uint32        // 5
	FailureRatio float64       // 0.6
	OpenTimeout  time.Duration // 10s before half-open
	HalfOpenMax  uint32        // 3 trial requests
	Window       time.Duration // 30s counting window while closed
}

func (b BreakerConfig) withDefaults() BreakerConfig {
	if b.MinRequests == 0 {
		b.MinRequests = 5
	}
	if b.FailureRatio <= 0 {
		b.FailureRatio = 0.6
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = 10 * time.Second
	}
	if b.HalfOpenMax == 0 {
		b.HalfOpenMax = 3
	}
	if b.Window <= 0 {
		b.Window = 30 * time.Second
	}
	return b
}

// backoff returns the wait after the given failed attempt (0-based):
// InitialBackoff doubled per attempt, capped, plus up to 50% jitter.
func (c Config) backoff(attempt int) time.Duration {
	if c.InitialBackoff <= 0 {
		return 0
	}
	ceiling := c.MaxBackoff
	if ceiling <= 0 {
		ceiling = 32 * c.InitialBackoff
	}
	wait := c.InitialBackoff
	for i := 0; i < attempt && wait < ceiling; i++ {
		wait *= 2
	}
	wait = min(wait, ceiling)
	if half := int64(wait / 2); half > 0 {
		wait += time.Duration(rand.Int64N(half))
	}
	return wait
}

// RetryWithBackoff runs fn up to MaxRetries+1 times. It stops early on
// success, on context cancellation and on errors cfg.Retryable rejects.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxRetries {
			break
		}

		wait := cfg.backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, wait, lastErr)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// NewCircuitBreaker creates a breaker that opens once FailureRatio of at
// least MinRequests calls in the window failed. Errors accepted by
// isSuccessful (may be nil) do not count as failures.
func NewCircuitBreaker(name string, cfg BreakerConfig, isSuccessful func(error) bool, onStateChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	cfg = cfg.withDefaults()
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.HalfOpenMax,
		Interval:      cfg.Window,
		Timeout:       cfg.OpenTimeout,
		IsSuccessful:  isSuccessful,
		OnStateChange: onStateChange,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
	})
}

// Bulkhead limits concurrent access to a resource.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with the given max concurrency.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	return &Bulkhead{sem: make(chan struct{}, maxConcurrency)}
}

// Acquire blocks until a slot is available or ctx is done.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (b *Bulkhead) Release() {
	<-b.sem
}

// InUse reports how many slots are held.
func (b *Bulkhead) InUse() int { return len(b.sem) }
