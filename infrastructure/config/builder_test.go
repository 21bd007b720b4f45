package config

import (
	"testing"
	"time"

	domainconfig "github.com/dispatchkit/fleet/domain/config"
	"github.com/dispatchkit/fleet/domain/protocol"
	"github.com/dispatchkit/fleet/infrastructure/resilience"
)

func TestBuilder_QueueConfig(t *testing.T) {
	cfg := domainconfig.DefaultFleetConfig()
	cfg.Queue.MaxConcurrent = 25

	qc := NewBuilder(cfg).QueueConfig()
	if qc.MaxConcurrent != 25 {
		t.Errorf("MaxConcurrent = %d, want 25", qc.MaxConcurrent)
	}
	if qc.Backoff.Type != resilience.BackoffExponential {
		t.Errorf("Backoff.Type = %s, want exponential", qc.Backoff.Type)
	}
}

func TestBuilder_PoolConfig(t *testing.T) {
	cfg := domainconfig.DefaultFleetConfig()
	cfg.Pool.MinWorkers = 3
	cfg.Pool.MaxWorkers = 12
	cfg.Pool.TaskTimeoutMS = domainconfig.Duration(10 * time.Second)

	pc := NewBuilder(cfg).PoolConfig(protocol.TargetWorker)
	if pc.MinWorkers != 3 {
		t.Errorf("MinWorkers = %d, want 3", pc.MinWorkers)
	}
	if pc.MaxWorkers != 12 {
		t.Errorf("MaxWorkers = %d, want 12", pc.MaxWorkers)
	}
	if pc.TaskTimeout != 10*time.Second {
		t.Errorf("TaskTimeout = %v, want 10s", pc.TaskTimeout)
	}
	if pc.Target != protocol.TargetWorker {
		t.Errorf("Target = %s, want %s", pc.Target, protocol.TargetWorker)
	}
}

func TestBuilder_HeartbeatConfig(t *testing.T) {
	cfg := domainconfig.DefaultFleetConfig()
	cfg.Heartbeat.MaxMiss = 5

	hc := NewBuilder(cfg).HeartbeatConfig()
	if hc.MaxMissedHeartbeats != 5 {
		t.Errorf("MaxMissedHeartbeats = %d, want 5", hc.MaxMissedHeartbeats)
	}
	if hc.Interval != 5*time.Second {
		t.Errorf("Interval = %v, want 5s", hc.Interval)
	}
}

func TestBuilder_RouterConfig(t *testing.T) {
	cfg := domainconfig.DefaultFleetConfig()
	cfg.Router.MainThreadThreshold = 15
	cfg.Router.SharedWorkerThreshold = 60

	rc := NewBuilder(cfg).RouterConfig()
	if rc.MainThreadThreshold != 15 {
		t.Errorf("MainThreadThreshold = %d, want 15", rc.MainThreadThreshold)
	}
	if rc.SharedWorkerThreshold != 60 {
		t.Errorf("SharedWorkerThreshold = %d, want 60", rc.SharedWorkerThreshold)
	}
}

func TestBuilder_BackoffConfig(t *testing.T) {
	cfg := domainconfig.DefaultFleetConfig()
	cfg.Backoff.Type = "linear"

	bc := NewBuilder(cfg).BackoffConfig()
	if bc.Type != resilience.BackoffLinear {
		t.Errorf("Type = %s, want linear", bc.Type)
	}
}

func TestBuilder_CollectorPoolMaxRetained(t *testing.T) {
	cfg := domainconfig.DefaultFleetConfig()
	cfg.Collector.MaxRetainedResults = 0

	got := NewBuilder(cfg).CollectorPoolMaxRetained()
	if got <= 0 {
		t.Errorf("CollectorPoolMaxRetained() = %d, want a positive fallback", got)
	}

	cfg.Collector.MaxRetainedResults = 250
	if got := NewBuilder(cfg).CollectorPoolMaxRetained(); got != 250 {
		t.Errorf("CollectorPoolMaxRetained() = %d, want 250", got)
	}
}

func TestBuilder_DispatchDefaults(t *testing.T) {
	cfg := domainconfig.DefaultFleetConfig()
	b := NewBuilder(cfg)

	if got := b.DefaultDispatchMaxAttempts(); got != cfg.Queue.DefaultMaxAttempts {
		t.Errorf("DefaultDispatchMaxAttempts() = %d, want %d", got, cfg.Queue.DefaultMaxAttempts)
	}
	if got := b.DefaultDispatchTimeout(); got != cfg.Queue.DefaultTimeoutMS.Duration() {
		t.Errorf("DefaultDispatchTimeout() = %v, want %v", got, cfg.Queue.DefaultTimeoutMS.Duration())
	}
}
