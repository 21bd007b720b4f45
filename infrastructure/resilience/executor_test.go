package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dispatchkit/fleet/domain/dispatch"
)

func TestDefaultExecutorConfig(t *testing.T) {
	config := DefaultExecutorConfig()

	if config.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", config.MaxConcurrent)
	}
	if config.CircuitBreakerThreshold != 5 {
		t.Errorf("CircuitBreakerThreshold = %d, want 5", config.CircuitBreakerThreshold)
	}
	if config.RetryMaxAttempts != 1 {
		t.Errorf("RetryMaxAttempts = %d, want 1", config.RetryMaxAttempts)
	}
	if config.DefaultTimeout != 30*time.Second {
		t.Errorf("DefaultTimeout = %v, want 30s", config.DefaultTimeout)
	}
}

func TestNewExecutor(t *testing.T) {
	executor := NewExecutor(DefaultExecutorConfig())
	if executor == nil {
		t.Fatal("NewExecutor() returned nil")
	}
}

func TestNewDefaultExecutor(t *testing.T) {
	executor := NewDefaultExecutor()
	if executor == nil {
		t.Fatal("NewDefaultExecutor() returned nil")
	}
}

func TestExecutor_Execute_Success(t *testing.T) {
	executor := NewDefaultExecutor()

	result, err := executor.Execute(context.Background(), func(ctx context.Context) (dispatch.Result, error) {
		return dispatch.Result{DispatchID: "d1", TargetID: "worker-1", IsFinal: true}, nil
	})
	if err != nil {
		t.Errorf("Execute() error = %v, want nil", err)
	}
	if result.DispatchID != "d1" {
		t.Errorf("Execute() DispatchID = %q, want d1", result.DispatchID)
	}
}

func TestExecutor_Execute_Failure(t *testing.T) {
	executor := NewDefaultExecutor()
	expectedErr := errors.New("worker error")

	_, err := executor.Execute(context.Background(), func(ctx context.Context) (dispatch.Result, error) {
		return dispatch.Result{}, expectedErr
	})
	if err == nil {
		t.Error("Execute() should return error")
	}
}

func TestExecutor_Execute_ContextCancellation(t *testing.T) {
	executor := NewExecutor(ExecutorConfig{
		MaxConcurrent:           10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        1,
		RetryInitialDelay:       10 * time.Millisecond,
		DefaultTimeout:          5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := executor.Execute(ctx, func(ctx context.Context) (dispatch.Result, error) {
		select {
		case <-ctx.Done():
			return dispatch.Result{}, ctx.Err()
		case <-time.After(10 * time.Second):
			return dispatch.Result{}, nil
		}
	})
	if err == nil {
		t.Error("Execute() should return error on context cancellation")
	}
}

func TestExecutor_ExecuteWithTimeout(t *testing.T) {
	executor := NewDefaultExecutor()

	result, err := executor.ExecuteWithTimeout(context.Background(), 5*time.Second, func(ctx context.Context) (dispatch.Result, error) {
		return dispatch.Result{DispatchID: "d2", IsFinal: true}, nil
	})
	if err != nil {
		t.Errorf("ExecuteWithTimeout() error = %v, want nil", err)
	}
	if result.DispatchID != "d2" {
		t.Error("ExecuteWithTimeout() should return the work result")
	}
}

func TestExecutor_CircuitBreakerState(t *testing.T) {
	executor := NewDefaultExecutor()
	state := executor.CircuitBreakerState()
	if state.String() != "closed" {
		t.Errorf("Initial CircuitBreakerState() = %v, want closed", state)
	}
}

func TestExecutor_NegativeConfig(t *testing.T) {
	executor := NewExecutor(ExecutorConfig{
		MaxConcurrent:           -1,
		CircuitBreakerThreshold: -1,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        1,
		RetryInitialDelay:       100 * time.Millisecond,
		DefaultTimeout:          30 * time.Second,
	})

	if executor == nil {
		t.Fatal("NewExecutor() with negative values returned nil")
	}

	_, err := executor.Execute(context.Background(), func(ctx context.Context) (dispatch.Result, error) {
		return dispatch.Result{}, nil
	})
	if err != nil {
		t.Errorf("Execute() with negative config error = %v", err)
	}
}
