// Package heartbeat implements the Heartbeat Monitor: periodic liveness
// probing, RTT tracking, health classification, and restart requests.
package heartbeat

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dispatchkit/fleet/domain/protocol"
	"github.com/dispatchkit/fleet/domain/worker"
	"github.com/dispatchkit/fleet/infrastructure/logging"
	"github.com/dispatchkit/fleet/infrastructure/pool"
	"github.com/dispatchkit/fleet/infrastructure/telemetry"
)

// Config shapes probing cadence and failure thresholds, per spec §4.3.
type Config struct {
	Interval            time.Duration
	Timeout             time.Duration
	WindowSize          int
	DegradedThreshold   time.Duration
	MaxMissedHeartbeats int
	AutoRestart         bool

	// Metrics records heartbeat RTT, miss, and restart counts. Defaults
	// to a no-op provider when nil.
	Metrics telemetry.Metrics
}

// DefaultConfig returns spec-default heartbeat behavior.
func DefaultConfig() Config {
	return Config{
		Interval:            5 * time.Second,
		Timeout:             2 * time.Second,
		WindowSize:          10,
		DegradedThreshold:   1 * time.Second,
		MaxMissedHeartbeats: 3,
		AutoRestart:         true,
	}
}

// Monitor probes every registered worker on a fixed interval and
// classifies its health from the outcome, publishing recovery/failure
// transitions on its Bus.
type Monitor struct {
	cfg     Config
	pool    *pool.Pool
	bus     *Bus
	metrics telemetry.Metrics

	mu      sync.Mutex
	health  map[string]*worker.Health
	nextSeq map[string]int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Monitor bound to the given pool.
func New(cfg Config, p *pool.Pool) *Monitor {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &telemetry.NoopMetricsProvider{}
	}
	return &Monitor{
		cfg:     cfg,
		pool:    p,
		bus:     NewBus(),
		metrics: metrics,
		health:  make(map[string]*worker.Health),
		nextSeq: make(map[string]int64),
	}
}

// Bus returns the transition notification bus.
func (m *Monitor) Bus() *Bus {
	return m.bus
}

// RegisterWorker begins probing a worker, creating a fresh health record.
func (m *Monitor) RegisterWorker(workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health[workerID] = worker.NewHealth(workerID, m.cfg.WindowSize)
	m.nextSeq[workerID] = 0
}

// UnregisterWorker stops probing a worker and discards its health record.
func (m *Monitor) UnregisterWorker(workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.health, workerID)
	delete(m.nextSeq, workerID)
}

// Health returns a copy of a worker's current health snapshot, if known.
func (m *Monitor) Health(workerID string) (worker.Health, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.health[workerID]
	if !ok {
		return worker.Health{}, false
	}
	return *h, true
}

// Start begins the probing loop. Call Stop to end it.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop ends the probing loop.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

func (m *Monitor) probeAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.health))
	for id := range m.health {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			m.probeOne(ctx, workerID)
		}(id)
	}
	wg.Wait()
}

func (m *Monitor) probeOne(ctx context.Context, workerID string) {
	m.mu.Lock()
	seq := m.nextSeq[workerID]
	m.nextSeq[workerID] = seq + 1
	h, ok := m.health[workerID]
	if ok {
		h.LastHeartbeatID = seq
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	sentAt := time.Now()
	payload := protocol.HeartbeatPayload{HeartbeatID: seq, TimestampMS: sentAt.UnixMilli(), WorkerID: workerID}
	env, err := protocol.New(protocol.MessageHeartbeat, strconv.FormatInt(seq, 10)+":"+workerID, protocol.TargetWorker, protocol.PriorityCritical, m.cfg.Timeout, payload)
	if err != nil {
		m.recordMiss(workerID)
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	replies, err := m.pool.SendHeartbeat(probeCtx, workerID, env)
	if err != nil {
		m.recordMiss(workerID)
		return
	}

	select {
	case reply, ok := <-replies:
		if !ok {
			m.recordMiss(workerID)
			return
		}
		var rp protocol.HeartbeatPayload
		if err := reply.UnmarshalPayload(&rp); err != nil || rp.HeartbeatID != seq {
			// Stale or malformed reply: dropped, counts as a miss.
			m.recordMiss(workerID)
			return
		}
		m.recordSuccess(workerID, time.Since(sentAt))
	case <-probeCtx.Done():
		m.recordMiss(workerID)
	}
}

func (m *Monitor) recordSuccess(workerID string, rtt time.Duration) {
	m.mu.Lock()
	h, ok := m.health[workerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	before := h.Status
	h.RecordSuccess(rtt, time.Now())
	after := worker.Classify(true, rtt, m.cfg.DegradedThreshold, 0, m.cfg.MaxMissedHeartbeats)
	h.Status = after
	m.mu.Unlock()

	m.metrics.RecordHeartbeatRTT(context.Background(), workerID, rtt)
	m.fireTransition(workerID, before, after)
}

func (m *Monitor) recordMiss(workerID string) {
	m.mu.Lock()
	h, ok := m.health[workerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	before := h.Status
	h.RecordMiss()
	missedCount := h.ConsecutiveMisses
	after := worker.Classify(false, 0, m.cfg.DegradedThreshold, missedCount, m.cfg.MaxMissedHeartbeats)
	h.Status = after
	shouldRestart := after == worker.HealthFailed && m.cfg.AutoRestart
	if shouldRestart {
		h.Reset()
	}
	m.mu.Unlock()

	ctx := context.Background()
	m.metrics.RecordMissedHeartbeat(ctx, workerID, missedCount)
	logging.Debug().
		Add(logging.WorkerID(workerID)).
		Add(logging.MissedBeats(missedCount)).
		Msg("heartbeat missed")
	m.fireTransition(workerID, before, after)
	if shouldRestart {
		m.metrics.RecordWorkerRestarted(ctx, workerID)
		m.pool.TerminateWorker(workerID)
	}
}

func (m *Monitor) fireTransition(workerID string, before, after worker.HealthStatus) {
	if before == after {
		return
	}

	logging.Info().
		Add(logging.WorkerID(workerID)).
		Add(logging.Str("from_health", string(before))).
		Add(logging.Str("to_health", string(after))).
		Msg("worker health classification changed")

	if after == worker.HealthHealthy && (before == worker.HealthDegraded || before == worker.HealthUnresponsive) {
		m.bus.publish(Transition{WorkerID: workerID, Kind: TransitionRecovered, From: before, To: after})
		return
	}
	if after == worker.HealthFailed {
		logging.Warn().
			Add(logging.WorkerID(workerID)).
			Msg("worker declared failed")
		m.bus.publish(Transition{WorkerID: workerID, Kind: TransitionFailed, From: before, To: after})
	}
}
