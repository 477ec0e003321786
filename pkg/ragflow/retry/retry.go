package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts includes the first call.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	// Jitter is the randomization factor in [0, 1].
	Jitter float64

	// Retryable overrides IsRetryable.
	Retryable func(error) bool
}

// Default is used by the LLM and embedding adapters.
var Default = Config{
	MaxAttempts:    3,
	InitialBackoff: time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// None makes a single attempt.
var None = Config{MaxAttempts: 1}

// Option adjusts a Config.
type Option func(*Config)

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(c *Config) { c.MaxAttempts = n }
}

// WithInitialBackoff sets the first wait.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Config) { c.InitialBackoff = d }
}

// WithMaxBackoff caps each wait.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Config) { c.MaxBackoff = d }
}

// WithJitter sets the randomization factor.
func WithJitter(j float64) Option {
	return func(c *Config) { c.Jitter = j }
}

// WithRetryable sets a custom retryability check.
func WithRetryable(fn func(error) bool) Option {
	return func(c *Config) { c.Retryable = fn }
}

// NewConfig applies opts to Default.
func NewConfig(opts ...Option) Config {
	cfg := Default
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c Config) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.InitialBackoff
	bo.MaxInterval = c.MaxBackoff
	if c.BackoffFactor > 0 {
		bo.Multiplier = c.BackoffFactor
	}
	bo.RandomizationFactor = c.Jitter
	bo.Reset()
	return bo
}

// Do calls fn until it succeeds, returns a non-retryable error, ctx is done
// or MaxAttempts is reached. Failures are returned as *CategorizedError.
func Do[T any](ctx context.Context, cfg Config, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	bo := cfg.newBackOff()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, &CategorizedError{Err: err, Category: CategoryPermanent, Attempts: attempt - 1, Op: op}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, &CategorizedError{Err: err, Category: Categorize(err), Attempts: attempt, Op: op}
		}
		if attempt == attempts {
			break
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &CategorizedError{Err: ctx.Err(), Category: CategoryPermanent, Attempts: attempt, Op: op}
		case <-timer.C:
		}
	}

	return zero, &CategorizedError{Err: lastErr, Category: CategoryTransient, Attempts: attempts, Op: op}
}
