// Package resilience provides the Dispatch Queue's retry-delay shape and
// a per-pool resilient executor built on fortify.
package resilience

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/dispatchkit/fleet/domain/dispatch"
)

// WorkFunc performs one dispatch attempt against a worker and returns its
// result or an error from the domain/dispatch error taxonomy.
type WorkFunc func(ctx context.Context) (dispatch.Result, error)

// Executor wraps dispatch attempts with bulkhead admission, a circuit
// breaker per worker pool, and retry for transient failures.
type Executor struct {
	bulkhead bulkhead.Bulkhead[dispatch.Result]
	breaker  circuitbreaker.CircuitBreaker[dispatch.Result]
	retry    retry.Retry[dispatch.Result]
	timeout  time.Duration
}

// ExecutorConfig configures the resilient executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent in-flight dispatches admitted past
	// the bulkhead, independent of the pool's worker count.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive failures
	// before the breaker opens and stops admitting new attempts.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open before
	// probing again.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts bounds fortify's own retry loop. The Dispatch
	// Queue performs its own attempt bookkeeping against MaxAttempts;
	// this is kept at 1 (no fortify-level retry) so the queue remains
	// the single source of truth for attempt counts.
	RetryMaxAttempts int

	// RetryInitialDelay is the initial delay between fortify retries.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is fortify's own exponential multiplier.
	RetryBackoffMultiplier float64

	// DefaultTimeout bounds a single dispatch attempt.
	DefaultTimeout time.Duration
}

// DefaultExecutorConfig returns a configuration with sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:           10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        1,
		RetryInitialDelay:       100 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		DefaultTimeout:          30 * time.Second,
	}
}

// NewExecutor creates a new resilient executor.
func NewExecutor(config ExecutorConfig) *Executor {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent < 0 {
		maxConcurrent = 10
	}
	threshold := config.CircuitBreakerThreshold
	if threshold < 0 {
		threshold = 5
	}

	return &Executor{
		bulkhead: bulkhead.New[dispatch.Result](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		breaker: circuitbreaker.New[dispatch.Result](circuitbreaker.Config{
			MaxRequests: uint32(maxConcurrent), // #nosec G115 -- bounds checked above
			Interval:    config.CircuitBreakerTimeout,
			Timeout:     config.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounds checked above
			},
		}),
		retry: retry.New[dispatch.Result](retry.Config{
			MaxAttempts:   config.RetryMaxAttempts,
			InitialDelay:  config.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    config.RetryBackoffMultiplier,
		}),
		timeout: config.DefaultTimeout,
	}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultExecutorConfig())
}

// Execute runs one dispatch attempt with resilience patterns applied.
// Composition order: Bulkhead → Timeout → Circuit Breaker → Retry.
func (e *Executor) Execute(ctx context.Context, fn WorkFunc) (dispatch.Result, error) {
	return e.bulkhead.Execute(ctx, func(ctx context.Context) (dispatch.Result, error) {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		return e.breaker.Execute(ctx, func(ctx context.Context) (dispatch.Result, error) {
			return e.retry.Do(ctx, fn)
		})
	})
}

// ExecuteWithTimeout runs a dispatch attempt with a custom timeout,
// overriding the executor's configured default.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, timeout time.Duration, fn WorkFunc) (dispatch.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.Execute(ctx, fn)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (e *Executor) CircuitBreakerState() circuitbreaker.State {
	return e.breaker.State()
}
