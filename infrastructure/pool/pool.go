package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchkit/fleet/domain/dispatch"
	"github.com/dispatchkit/fleet/domain/protocol"
	"github.com/dispatchkit/fleet/domain/worker"
	"github.com/dispatchkit/fleet/infrastructure/logging"
	"github.com/dispatchkit/fleet/infrastructure/resilience"
	"github.com/dispatchkit/fleet/infrastructure/statemachine"
	"github.com/dispatchkit/fleet/infrastructure/telemetry"
)

// setWorkerState transitions a managed worker's state iff the move is
// legal under the worker statechart, and is a no-op otherwise. Callers
// hold p.mu for the duration.
func setWorkerState(w *worker.Worker, to worker.State) {
	if !statemachine.WorkerTransitionAllowed(w.State, to) {
		return
	}
	logging.Info().
		Add(logging.WorkerID(w.ID)).
		Add(logging.Str("from_worker_state", string(w.State))).
		Add(logging.WorkerState(to)).
		Msg("worker state transition")
	w.State = to
}

// Errors returned directly by pool operations.
var (
	ErrPoolShutdown = errors.New("pool: shut down")
	ErrNoIdleWorker = errors.New("pool: no idle worker available within wait bound")
)

// Config bounds pool sizing and timing.
type Config struct {
	MinWorkers    int
	MaxWorkers    int
	TaskTimeout   time.Duration
	IdleTimeout   time.Duration
	IdleWaitBound time.Duration // default: 5s
	Target        protocol.TargetType

	// Metrics records active/idle worker gauges. Defaults to a no-op
	// provider when nil.
	Metrics telemetry.Metrics
}

// DefaultConfig returns spec-default pool sizing.
func DefaultConfig() Config {
	return Config{
		MinWorkers:    2,
		MaxWorkers:    8,
		TaskTimeout:   5 * time.Second,
		IdleTimeout:   30 * time.Second,
		IdleWaitBound: 5 * time.Second,
		Target:        protocol.TargetWorker,
	}
}

type managedWorker struct {
	info *worker.Worker
	proc WorkerProc

	mu      sync.Mutex
	pending map[string]chan protocol.Envelope

	stopReader context.CancelFunc
}

func (mw *managedWorker) register(requestID string) chan protocol.Envelope {
	ch := make(chan protocol.Envelope, 1)
	mw.mu.Lock()
	mw.pending[requestID] = ch
	mw.mu.Unlock()
	return ch
}

func (mw *managedWorker) unregister(requestID string) {
	mw.mu.Lock()
	delete(mw.pending, requestID)
	mw.mu.Unlock()
}

// transition moves mw to the given state and updates the active/idle
// worker gauges to match. Callers hold p.mu for the duration.
func (p *Pool) transition(mw *managedWorker, to worker.State) {
	from := mw.info.State
	setWorkerState(mw.info, to)
	if mw.info.State != to {
		return
	}
	ctx := context.Background()
	if from == worker.StateIdle && to != worker.StateIdle {
		p.metrics.SetIdleWorkers(ctx, -1)
	}
	if to == worker.StateIdle && from != worker.StateIdle {
		p.metrics.SetIdleWorkers(ctx, 1)
	}
	if from == worker.StateBusy && to != worker.StateBusy {
		p.metrics.SetActiveWorkers(ctx, -1)
	}
	if to == worker.StateBusy && from != worker.StateBusy {
		p.metrics.SetActiveWorkers(ctx, 1)
	}
}

// Pool is the Worker Pool: it spawns, assigns, reaps, and replaces a
// bounded set of isolated workers.
type Pool struct {
	cfg      Config
	factory  WorkerProcFactory
	executor *resilience.Executor
	metrics  telemetry.Metrics

	mu      sync.Mutex
	workers map[string]*managedWorker
	idle    []string
	closed  bool

	idleSignal chan struct{}

	reapCancel context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a Pool and starts its idle-reaping sweep. Workers are
// spawned lazily on first demand, up to MinWorkers eagerly. Every
// dispatch the pool executes runs behind a bulkhead (bounding concurrent
// in-flight attempts independent of worker count) and a circuit breaker
// that trips the pool out of rotation once workers start failing
// consecutively, ahead of what the Heartbeat Monitor would otherwise
// detect on its own cadence.
func New(cfg Config, factory WorkerProcFactory) (*Pool, error) {
	execCfg := resilience.DefaultExecutorConfig()
	execCfg.MaxConcurrent = cfg.MaxWorkers
	execCfg.DefaultTimeout = cfg.TaskTimeout

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &telemetry.NoopMetricsProvider{}
	}

	p := &Pool{
		cfg:        cfg,
		factory:    factory,
		executor:   resilience.NewExecutor(execCfg),
		metrics:    metrics,
		workers:    make(map[string]*managedWorker),
		idleSignal: make(chan struct{}, 1),
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		if _, err := p.spawn(); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.reapCancel = cancel
	p.wg.Add(1)
	go p.reapLoop(ctx)

	return p, nil
}

func (p *Pool) spawn() (*managedWorker, error) {
	id := uuid.NewString()
	proc, err := p.factory(id)
	if err != nil {
		return nil, err
	}

	mw := &managedWorker{
		info:    &worker.Worker{ID: id, State: worker.StateSpawning, CreatedAt: time.Now()},
		proc:    proc,
		pending: make(map[string]chan protocol.Envelope),
	}

	readerCtx, stopReader := context.WithCancel(context.Background())
	mw.stopReader = stopReader
	p.wg.Add(1)
	go p.readLoop(readerCtx, mw)

	p.mu.Lock()
	p.transition(mw, worker.StateIdle)
	p.workers[id] = mw
	p.idle = append(p.idle, id)
	p.mu.Unlock()
	p.signalIdle()

	return mw, nil
}

// readLoop continuously drains a worker's replies and routes each to its
// correlated pending channel by RequestID. Heartbeat replies are routed
// the same way; the Heartbeat Monitor registers its own correlation
// entries through SendHeartbeat.
func (p *Pool) readLoop(ctx context.Context, mw *managedWorker) {
	defer p.wg.Done()
	for {
		env, err := mw.proc.Recv(ctx)
		if err != nil {
			logging.Error().
				Add(logging.Component("pool")).
				Add(logging.Operation("read")).
				Add(logging.WorkerID(mw.info.ID)).
				Add(logging.ErrorField(err)).
				Msg("worker read failed")
			p.metrics.RecordError(context.Background(), "worker_read_failed", map[string]string{"worker_id": mw.info.ID})
			p.failWorker(mw, err)
			return
		}

		mw.mu.Lock()
		ch, ok := mw.pending[env.RequestID]
		mw.mu.Unlock()
		if !ok {
			// Unknown id: logged and dropped, per spec §4.2.
			logging.Error().
				Add(logging.WorkerID(mw.info.ID)).
				Add(logging.Str("request_id", env.RequestID)).
				Msg("worker reply for unknown request id dropped")
			continue
		}
		select {
		case ch <- env:
		default:
		}
	}
}

// Execute assigns the dispatch to an idle worker (spawning or waiting for
// one as needed), sends it over the wire, and blocks for the worker's
// terminal reply or this pool's own per-task timeout. The call is
// admitted through the pool's bulkhead and circuit breaker; fortify's
// own retry loop is disabled (RetryMaxAttempts: 1) so the Dispatch
// Queue's attempt bookkeeping stays the single source of truth for
// retries.
func (p *Pool) Execute(ctx context.Context, d *dispatch.Dispatch) (dispatch.Result, error) {
	return p.executor.Execute(ctx, func(ctx context.Context) (dispatch.Result, error) {
		return p.executeOnce(ctx, d)
	})
}

func (p *Pool) executeOnce(ctx context.Context, d *dispatch.Dispatch) (dispatch.Result, error) {
	mw, err := p.acquireIdle(ctx)
	if err != nil {
		return dispatch.Result{}, err
	}

	requestID := d.ID
	p.mu.Lock()
	mw.info.CurrentDispatch = requestID
	p.mu.Unlock()
	replies := mw.register(requestID)
	defer mw.unregister(requestID)

	payload := protocol.DispatchCodePayload{
		Code:         string(d.Bundle.Payload),
		CodeHash:     d.Bundle.Fingerprint,
		Dependencies: d.Bundle.Dependencies,
	}
	env, err := protocol.New(protocol.MessageDispatchCode, requestID, p.cfg.Target, protocol.Priority(d.Priority), p.cfg.TaskTimeout, payload)
	if err != nil {
		p.release(mw, false)
		return dispatch.Result{}, err
	}

	if err := mw.proc.Send(ctx, env); err != nil {
		p.failWorker(mw, err)
		return dispatch.Result{}, dispatch.ErrTransient
	}

	taskCtx, cancel := context.WithTimeout(ctx, p.cfg.TaskTimeout)
	defer cancel()

	for {
		select {
		case reply := <-replies:
			switch reply.Type {
			case protocol.MessageResult, protocol.MessageComplete:
				var rp protocol.ResultPayload
				if reply.Type == protocol.MessageResult {
					if err := reply.UnmarshalPayload(&rp); err != nil {
						p.release(mw, false)
						return dispatch.Result{}, dispatch.ErrTransient
					}
				}
				result := dispatch.Result{
					DispatchID: d.ID,
					TargetID:   mw.info.ID,
					Payload:    rp.Value,
					IsFinal:    true,
					ProducedAt: time.Now(),
					ExecTimeMS: rp.Metadata.ExecutionTimeMS,
					MemoryUsed: rp.Metadata.MemoryUsed,
				}
				p.release(mw, true)
				return result, nil
			case protocol.MessageError:
				p.failWorker(mw, errors.New("worker reported error"))
				return dispatch.Result{}, dispatch.ErrTransient
			case protocol.MessageProgress:
				continue
			default:
				continue
			}
		case <-taskCtx.Done():
			p.failWorker(mw, errors.New("worker stuck: task timeout"))
			return dispatch.Result{}, dispatch.ErrTransient
		case <-ctx.Done():
			p.release(mw, false)
			return dispatch.Result{}, ctx.Err()
		}
	}
}

// acquireIdle returns an idle worker, spawning one if under MaxWorkers,
// else polling for up to IdleWaitBound.
func (p *Pool) acquireIdle(ctx context.Context) (*managedWorker, error) {
	deadline := time.Now().Add(p.cfg.IdleWaitBound)
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolShutdown
		}
		if len(p.idle) > 0 {
			id := p.idle[len(p.idle)-1]
			p.idle = p.idle[:len(p.idle)-1]
			mw := p.workers[id]
			p.transition(mw, worker.StateBusy)
			p.mu.Unlock()
			return mw, nil
		}
		canSpawn := len(p.workers) < p.cfg.MaxWorkers
		p.mu.Unlock()

		if canSpawn {
			mw, err := p.spawn()
			if err != nil {
				return nil, err
			}
			p.mu.Lock()
			for i, id := range p.idle {
				if id == mw.info.ID {
					p.idle = append(p.idle[:i], p.idle[i+1:]...)
					break
				}
			}
			p.transition(mw, worker.StateBusy)
			p.mu.Unlock()
			return mw, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrNoIdleWorker
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.idleSignal:
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (p *Pool) release(mw *managedWorker, succeeded bool) {
	p.mu.Lock()
	p.transition(mw, worker.StateIdle)
	mw.info.CurrentDispatch = ""
	mw.info.LastUsedAt = time.Now()
	if succeeded {
		mw.info.TasksCompleted++
	} else {
		mw.info.TasksFailed++
	}
	p.idle = append(p.idle, mw.info.ID)
	p.mu.Unlock()
	p.signalIdle()
}

// failWorker terminates a worker after an error and replaces it iff the
// pool would otherwise fall below MinWorkers.
func (p *Pool) failWorker(mw *managedWorker, _ error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.transition(mw, worker.StateDead)
	delete(p.workers, mw.info.ID)
	for i, id := range p.idle {
		if id == mw.info.ID {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			break
		}
	}
	belowMin := len(p.workers) < p.cfg.MinWorkers
	p.mu.Unlock()

	mw.stopReader()
	_ = mw.proc.Terminate()

	if belowMin {
		_, _ = p.spawn()
	}
}

func (p *Pool) signalIdle() {
	select {
	case p.idleSignal <- struct{}{}:
	default:
	}
}

// reapLoop terminates workers idle past IdleTimeout, never below
// MinWorkers, at a period of IdleTimeout/2.
func (p *Pool) reapLoop(ctx context.Context) {
	defer p.wg.Done()
	period := p.cfg.IdleTimeout / 2
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reapOnce()
		}
	}
}

func (p *Pool) reapOnce() {
	now := time.Now()
	p.mu.Lock()
	var victims []*managedWorker
	for _, id := range p.idle {
		if len(p.workers)-len(victims) <= p.cfg.MinWorkers {
			break
		}
		mw := p.workers[id]
		if mw.info.IdleFor(now) > p.cfg.IdleTimeout {
			victims = append(victims, mw)
		}
	}
	for _, mw := range victims {
		delete(p.workers, mw.info.ID)
		for i, id := range p.idle {
			if id == mw.info.ID {
				p.idle = append(p.idle[:i], p.idle[i+1:]...)
				break
			}
		}
		p.transition(mw, worker.StateDead)
	}
	p.mu.Unlock()

	for _, mw := range victims {
		mw.stopReader()
		_ = mw.proc.Terminate()
	}
}

// Shutdown terminates every worker and stops the idle-reaping sweep.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	workers := make([]*managedWorker, 0, len(p.workers))
	for _, mw := range p.workers {
		workers = append(workers, mw)
	}
	p.workers = make(map[string]*managedWorker)
	p.idle = nil
	p.mu.Unlock()

	p.reapCancel()
	for _, mw := range workers {
		mw.stopReader()
		_ = mw.proc.Terminate()
	}
	p.wg.Wait()
}

// Size returns the current worker count and how many are idle.
func (p *Pool) Size() (total, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers), len(p.idle)
}

// WorkerIDs returns the ids of every worker currently tracked, for the
// Heartbeat Monitor's registration sweep.
func (p *Pool) WorkerIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.workers))
	for id := range p.workers {
		ids = append(ids, id)
	}
	return ids
}

// SendHeartbeat sends a heartbeat envelope to the named worker and
// returns a channel that receives its single heartbeat-reply envelope.
// The channel is unregistered automatically once a reply arrives or the
// context given here is cancelled. Returns an error if the worker is
// unknown (already terminated and not replaced).
func (p *Pool) SendHeartbeat(ctx context.Context, workerID string, env protocol.Envelope) (<-chan protocol.Envelope, error) {
	p.mu.Lock()
	mw, ok := p.workers[workerID]
	p.mu.Unlock()
	if !ok {
		return nil, errors.New("pool: unknown worker id")
	}

	replies := mw.register(env.RequestID)
	if err := mw.proc.Send(ctx, env); err != nil {
		mw.unregister(env.RequestID)
		return nil, err
	}

	out := make(chan protocol.Envelope, 1)
	go func() {
		defer mw.unregister(env.RequestID)
		select {
		case reply := <-replies:
			out <- reply
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// TerminateWorker forcibly fails and replaces a worker, used by the
// Heartbeat Monitor when it declares a worker failed.
func (p *Pool) TerminateWorker(workerID string) {
	p.mu.Lock()
	mw, ok := p.workers[workerID]
	p.mu.Unlock()
	if !ok {
		return
	}
	p.failWorker(mw, errors.New("heartbeat: declared failed"))
}
