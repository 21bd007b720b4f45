package api

import (
	"context"
	"fmt"
	"time"

	"github.com/dispatchkit/fleet/domain/dispatch"
	"github.com/dispatchkit/fleet/domain/protocol"
	"github.com/dispatchkit/fleet/infrastructure/collector"
	"github.com/dispatchkit/fleet/infrastructure/heartbeat"
	"github.com/dispatchkit/fleet/infrastructure/logging"
	"github.com/dispatchkit/fleet/infrastructure/pool"
	"github.com/dispatchkit/fleet/infrastructure/queue"
	"github.com/dispatchkit/fleet/infrastructure/router"
	"github.com/dispatchkit/fleet/infrastructure/storage/memory"
	"github.com/dispatchkit/fleet/infrastructure/telemetry"
)

// Supervisor owns one fleet: a Dispatch Queue feeding a Dispatch Router,
// which routes admitted work to a primary Worker Pool or, for
// GPU/shared-memory/high-complexity bundles, a smaller shared pool,
// while a Heartbeat Monitor tracks the liveness of the primary pool's
// workers.
type Supervisor struct {
	queue      *queue.Queue
	mainPool   *pool.Pool
	sharedPool *pool.Pool
	router     *router.Router
	heartbeat  *heartbeat.Monitor
	collectors *collector.Pool
	metrics    telemetry.Metrics

	reconcileCancel context.CancelFunc
	reconcileDone   chan struct{}
}

// Options configures optional Supervisor dependencies.
type Options struct {
	// SharedWorkerFactory spawns workers for the shared pool. If nil, no
	// shared pool is created and the Router never selects it.
	SharedWorkerFactory pool.WorkerProcFactory
	// Metrics records dispatch/router/heartbeat telemetry. Defaults to a
	// no-op provider when nil.
	Metrics telemetry.Metrics
}

// NewSupervisor wires a Supervisor from a FleetConfig and a factory for
// the primary Worker Pool.
func NewSupervisor(cfg *FleetConfig, mainFactory pool.WorkerProcFactory, opts Options) (*Supervisor, error) {
	b := NewConfigBuilder(cfg)

	metrics := opts.Metrics
	if metrics == nil {
		metrics = &telemetry.NoopMetricsProvider{}
	}

	mainCfg := b.PoolConfig(protocol.TargetWorker)
	mainCfg.Metrics = metrics
	mainPool, err := pool.New(mainCfg, mainFactory)
	if err != nil {
		return nil, fmt.Errorf("supervisor: create main pool: %w", err)
	}

	var sharedPool *pool.Pool
	if opts.SharedWorkerFactory != nil {
		sharedCfg := b.PoolConfig(protocol.TargetSharedWorker)
		sharedCfg.Metrics = metrics
		sharedPool, err = pool.New(sharedCfg, opts.SharedWorkerFactory)
		if err != nil {
			mainPool.Shutdown()
			return nil, fmt.Errorf("supervisor: create shared pool: %w", err)
		}
	}

	routerCfg := b.RouterConfig()
	routerCfg.Metrics = metrics
	heartbeatCfg := b.HeartbeatConfig()
	heartbeatCfg.Metrics = metrics

	s := &Supervisor{
		mainPool:   mainPool,
		sharedPool: sharedPool,
		router:     router.New(routerCfg, memory.NewCache()),
		heartbeat:  heartbeat.New(heartbeatCfg, mainPool),
		collectors: collector.NewPool(b.CollectorPoolMaxRetained(), metrics),
		metrics:    metrics,
	}

	queueCfg := b.QueueConfig()
	queueCfg.Metrics = metrics
	s.queue = queue.New(queueCfg, queue.DispatcherFunc(s.dispatch))

	return s, nil
}

// Start begins heartbeat probing and worker-registration reconciliation.
func (s *Supervisor) Start(ctx context.Context) {
	s.heartbeat.Start(ctx)

	rctx, cancel := context.WithCancel(ctx)
	s.reconcileCancel = cancel
	s.reconcileDone = make(chan struct{})
	go s.reconcileWorkers(rctx)
}

// Shutdown stops probing and reconciliation and drains both pools.
func (s *Supervisor) Shutdown() {
	if s.reconcileCancel != nil {
		s.reconcileCancel()
		<-s.reconcileDone
	}
	s.heartbeat.Stop()
	s.queue.Close()
	s.mainPool.Shutdown()
	if s.sharedPool != nil {
		s.sharedPool.Shutdown()
	}
}

// Submit enqueues a bundle for dispatch and returns a future resolving
// with its eventual result.
func (s *Supervisor) Submit(bundle dispatch.Bundle, priority, maxAttempts int, timeout time.Duration) (*dispatch.Dispatch, *queue.Future, error) {
	d, fut, err := s.queue.Enqueue(bundle, priority, maxAttempts, timeout)
	if err == nil {
		s.metrics.RecordDispatchEnqueued(context.Background(), string(protocol.TargetWorker))
	}
	return d, fut, err
}

// Cancel requests cancellation of a queued or in-flight dispatch.
func (s *Supervisor) Cancel(id, reason string) bool {
	return s.queue.Cancel(id, reason)
}

// QueueMetrics returns a snapshot of Dispatch Queue counters.
func (s *Supervisor) QueueMetrics() queue.Metrics {
	return s.queue.Metrics()
}

// Collectors returns the Result Collector pool for fan-out dispatches.
func (s *Supervisor) Collectors() *collector.Pool {
	return s.collectors
}

// dispatch implements queue.Dispatcher by routing the bundle through the
// Router and executing it on whichever pool the decision selects.
func (s *Supervisor) dispatch(ctx context.Context, d *dispatch.Dispatch) (dispatch.Result, error) {
	load := s.loadSnapshot()

	decision, err := s.router.Route(ctx, d.Bundle, router.StrategyNone, load)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("supervisor: route dispatch: %w", err)
	}

	logging.Info().
		Add(logging.DispatchID(d.ID)).
		Add(logging.TargetType(string(decision.Target))).
		Add(logging.Score(float64(decision.ComplexityScore))).
		Msg("dispatch routed")

	target := s.mainPool
	if decision.Target == protocol.TargetSharedWorker && s.sharedPool != nil {
		target = s.sharedPool
	}

	start := time.Now()
	result, err := target.Execute(ctx, d)
	s.metrics.RecordDispatchCompleted(ctx, string(d.Status), 0, time.Since(start))
	return result, err
}

func (s *Supervisor) loadSnapshot() router.Load {
	qm := s.queue.Metrics()
	total, idle := s.mainPool.Size()

	shared := false
	if s.sharedPool != nil {
		sTotal, sIdle := s.sharedPool.Size()
		shared = sTotal > 0 && sIdle > 0
	}

	least := ""
	if ids := s.mainPool.WorkerIDs(); len(ids) > 0 {
		least = ids[0]
	}

	return router.Load{
		ActiveWorkers:         total - idle,
		PendingTasks:          qm.Waiting + qm.Ready,
		CPUProxyPct:           0,
		SharedWorkerAvailable: shared,
		LeastLoadedWorkerID:   least,
	}
}

// reconcileWorkers keeps the Heartbeat Monitor's registered set in sync
// with the primary pool's actual membership, since workers are spawned lazily
// on demand rather than all at construction time.
func (s *Supervisor) reconcileWorkers(ctx context.Context) {
	defer close(s.reconcileDone)

	known := make(map[string]bool)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sync := func() {
		seen := make(map[string]bool)
		for _, id := range s.mainPool.WorkerIDs() {
			seen[id] = true
			if !known[id] {
				s.heartbeat.RegisterWorker(id)
			}
		}
		for id := range known {
			if !seen[id] {
				s.heartbeat.UnregisterWorker(id)
			}
		}
		known = seen
	}

	sync()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sync()
		}
	}
}
