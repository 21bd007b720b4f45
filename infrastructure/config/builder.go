package config

import (
	"time"

	"github.com/dispatchkit/fleet/domain/config"
	"github.com/dispatchkit/fleet/domain/protocol"
	"github.com/dispatchkit/fleet/infrastructure/collector"
	"github.com/dispatchkit/fleet/infrastructure/heartbeat"
	"github.com/dispatchkit/fleet/infrastructure/pool"
	"github.com/dispatchkit/fleet/infrastructure/queue"
	"github.com/dispatchkit/fleet/infrastructure/resilience"
	"github.com/dispatchkit/fleet/infrastructure/router"
)

// Builder translates a validated FleetConfig into the construction
// options each subsystem package accepts natively.
type Builder struct {
	cfg *config.FleetConfig
}

// NewBuilder creates a Builder over the given configuration.
func NewBuilder(cfg *config.FleetConfig) *Builder {
	return &Builder{cfg: cfg}
}

// BackoffConfig converts to resilience.BackoffConfig.
func (b *Builder) BackoffConfig() resilience.BackoffConfig {
	return resilience.BackoffConfig{
		Type:       resilience.BackoffType(b.cfg.Backoff.Type),
		Base:       b.cfg.Backoff.BaseMS.Duration(),
		Max:        b.cfg.Backoff.MaxMS.Duration(),
		Multiplier: b.cfg.Backoff.Multiplier,
		Jitter:     b.cfg.Backoff.Jitter,
	}
}

// QueueConfig converts to queue.Config.
func (b *Builder) QueueConfig() queue.Config {
	return queue.Config{
		MaxConcurrent: b.cfg.Queue.MaxConcurrent,
		Backoff:       b.BackoffConfig(),
	}
}

// PoolConfig converts to pool.Config, routing assigned work at the given
// target type (the application layer picks worker vs. shared-worker vs.
// another transport per dispatch via the Router; this sets the pool's
// wire-level target for the workers it manages).
func (b *Builder) PoolConfig(target protocol.TargetType) pool.Config {
	return pool.Config{
		MinWorkers:    b.cfg.Pool.MinWorkers,
		MaxWorkers:    b.cfg.Pool.MaxWorkers,
		TaskTimeout:   b.cfg.Pool.TaskTimeoutMS.Duration(),
		IdleTimeout:   b.cfg.Pool.IdleTimeoutMS.Duration(),
		IdleWaitBound: 5 * time.Second,
		Target:        target,
	}
}

// HeartbeatConfig converts to heartbeat.Config.
func (b *Builder) HeartbeatConfig() heartbeat.Config {
	return heartbeat.Config{
		Interval:            b.cfg.Heartbeat.IntervalMS.Duration(),
		Timeout:             b.cfg.Heartbeat.TimeoutMS.Duration(),
		WindowSize:          10,
		DegradedThreshold:   b.cfg.Heartbeat.DegradedMS.Duration(),
		MaxMissedHeartbeats: b.cfg.Heartbeat.MaxMiss,
		AutoRestart:         b.cfg.Heartbeat.AutoRestart,
	}
}

// RouterConfig converts to router.Config.
func (b *Builder) RouterConfig() router.Config {
	return router.Config{
		MainThreadThreshold:   b.cfg.Router.MainThreadThreshold,
		SharedWorkerThreshold: b.cfg.Router.SharedWorkerThreshold,
	}
}

// CollectorPoolMaxRetained returns the Result Collector pool's LRU cap.
func (b *Builder) CollectorPoolMaxRetained() int {
	if b.cfg.Collector.MaxRetainedResults <= 0 {
		return collector.DefaultMaxRetained
	}
	return b.cfg.Collector.MaxRetainedResults
}

// DefaultDispatchMaxAttempts returns the configured retry ceiling new
// dispatches should be created with absent an explicit override.
func (b *Builder) DefaultDispatchMaxAttempts() int {
	return b.cfg.Queue.DefaultMaxAttempts
}

// DefaultDispatchTimeout returns the configured per-dispatch deadline.
func (b *Builder) DefaultDispatchTimeout() time.Duration {
	return b.cfg.Queue.DefaultTimeoutMS.Duration()
}
