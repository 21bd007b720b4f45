// Package router implements the Dispatch Router: complexity scoring and
// the ordered target-selection rules of spec §4.4.
package router

import (
	"context"
	"strconv"

	"github.com/dispatchkit/fleet/domain/cache"
	"github.com/dispatchkit/fleet/domain/dispatch"
	"github.com/dispatchkit/fleet/domain/protocol"
	"github.com/dispatchkit/fleet/infrastructure/logging"
	"github.com/dispatchkit/fleet/infrastructure/telemetry"
)

// Strategy is an explicit routing override a caller may pass with a
// dispatch, taking precedence over the router's own load-based rules.
type Strategy string

// Explicit strategies a caller may request.
const (
	StrategyNone         Strategy = ""
	StrategyInProcess    Strategy = "in-process"
	StrategyWorker       Strategy = "worker"
	StrategySharedWorker Strategy = "shared-worker"
)

// Load is a snapshot of system load the router scores decisions against.
type Load struct {
	ActiveWorkers         int
	PendingTasks          int
	CPUProxyPct           float64
	SharedWorkerAvailable bool
	LeastLoadedWorkerID   string
}

// Config bounds the router's thresholds, per spec §4.4.
type Config struct {
	MainThreadThreshold   int // complexity below this, plus low load, routes in-process
	SharedWorkerThreshold int // complexity above this routes to a shared worker

	// Metrics records cache hit/miss counts. Defaults to a no-op
	// provider when nil.
	Metrics telemetry.Metrics
}

// DefaultConfig returns spec-default thresholds.
func DefaultConfig() Config {
	return Config{
		MainThreadThreshold:   10,
		SharedWorkerThreshold: 50,
	}
}

// Decision is the router's chosen target and its score.
type Decision struct {
	Target          protocol.TargetType
	WorkerID        string // populated only when Target == TargetWorker
	ComplexityScore int
}

// Router scores bundles and selects a target. Only the bundle-derived
// complexity score is cached by fingerprint, to avoid re-scoring; the
// target selection itself is re-run against the live Load on every call,
// since it depends on more than the bundle alone.
type Router struct {
	cfg     Config
	cache   cache.Cache
	metrics telemetry.Metrics
}

// New creates a Router backed by the given fingerprint cache.
func New(cfg Config, fingerprintCache cache.Cache) *Router {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &telemetry.NoopMetricsProvider{}
	}
	return &Router{cfg: cfg, cache: fingerprintCache, metrics: metrics}
}

// Score computes the clamped [0,100] complexity score for a bundle.
func Score(b dispatch.Bundle) int {
	score := min(30, b.SizeKB/10)
	score += min(30, 3*len(b.Dependencies))
	if b.RequiresGPU {
		score += 20
	}
	if b.RequiresSharedMem {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	return score
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Route selects a target for the bundle per the ordered rules in spec
// §4.4. The bundle's complexity score is cached by fingerprint to avoid
// re-scoring; the target-selection rules always re-run against the
// Load given here, since a decision that depended on load snapshotted
// at an earlier call would go stale the moment that load changes.
func (r *Router) Route(ctx context.Context, b dispatch.Bundle, strategy Strategy, load Load) (Decision, error) {
	score, ok := r.lookupScore(ctx, b.Fingerprint)
	if ok {
		r.metrics.RecordRouterCacheHit(ctx)
	} else {
		r.metrics.RecordRouterCacheMiss(ctx)
		score = Score(b)
		r.storeScore(ctx, b.Fingerprint, score)
	}

	d := r.decide(b, strategy, load, score)

	logging.Debug().
		Add(logging.Fingerprint(b.Fingerprint)).
		Add(logging.Score(float64(score))).
		Add(logging.Cached(ok)).
		Add(logging.Strategy(string(strategy))).
		Msg("router score lookup")

	return d, nil
}

func (r *Router) decide(b dispatch.Bundle, strategy Strategy, load Load, score int) Decision {
	// Rule 1: GPU or shared-memory required.
	if (b.RequiresGPU || b.RequiresSharedMem) && load.SharedWorkerAvailable {
		return Decision{Target: protocol.TargetSharedWorker, ComplexityScore: score}
	}

	// Rule 2: explicit strategy.
	switch strategy {
	case StrategyInProcess:
		return Decision{Target: protocol.TargetWorker, ComplexityScore: score, WorkerID: "in-process"}
	case StrategySharedWorker:
		if load.SharedWorkerAvailable {
			return Decision{Target: protocol.TargetSharedWorker, ComplexityScore: score}
		}
	case StrategyWorker:
		return Decision{Target: protocol.TargetWorker, ComplexityScore: score, WorkerID: load.LeastLoadedWorkerID}
	}

	// Rule 3: low complexity and low load.
	if score < r.cfg.MainThreadThreshold && load.CPUProxyPct < 50 && load.PendingTasks < 3 {
		return Decision{Target: protocol.TargetWorker, ComplexityScore: score, WorkerID: "in-process"}
	}

	// Rule 4: high complexity.
	if score > r.cfg.SharedWorkerThreshold && load.SharedWorkerAvailable {
		return Decision{Target: protocol.TargetSharedWorker, ComplexityScore: score}
	}

	// Rule 5: least-loaded worker.
	if load.ActiveWorkers > 0 {
		return Decision{Target: protocol.TargetWorker, ComplexityScore: score, WorkerID: load.LeastLoadedWorkerID}
	}

	// Rule 6: fallback.
	return Decision{Target: protocol.TargetWorker, ComplexityScore: score, WorkerID: "in-process"}
}

func (r *Router) lookupScore(ctx context.Context, fingerprint string) (int, bool) {
	if r.cache == nil || fingerprint == "" {
		return 0, false
	}
	raw, found, err := r.cache.Get(ctx, fingerprintKey(fingerprint))
	if err != nil || !found {
		return 0, false
	}
	score, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, false
	}
	return score, true
}

func (r *Router) storeScore(ctx context.Context, fingerprint string, score int) {
	if r.cache == nil || fingerprint == "" {
		return
	}
	_ = r.cache.Set(ctx, fingerprintKey(fingerprint), []byte(strconv.Itoa(score)), cache.SetOptions{})
}

func fingerprintKey(fingerprint string) string {
	return "router:score:" + fingerprint
}
