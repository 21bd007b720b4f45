package collector

import (
	"sync"

	"github.com/dispatchkit/fleet/domain/collector"
	"github.com/dispatchkit/fleet/infrastructure/telemetry"
)

// DefaultMaxRetained is the spec-default LRU cap on completed results
// retained by a Pool after their collectors finish.
const DefaultMaxRetained = 100

// Pool creates, routes partials to, and retires Collectors by execution
// id. Completed results are retained under an LRU cap so a late caller
// can still fetch a just-finished merge.
type Pool struct {
	mu          sync.Mutex
	active      map[string]*Collector
	retained    map[string]collector.Merged
	retainedLRU []string // least recently used first
	maxRetained int
	metrics     telemetry.Metrics
}

// NewPool creates an empty CollectorPool. maxRetained <= 0 uses
// DefaultMaxRetained. metrics may be nil, in which case collectors
// created from this pool record no latency.
func NewPool(maxRetained int, metrics telemetry.Metrics) *Pool {
	if maxRetained <= 0 {
		maxRetained = DefaultMaxRetained
	}
	if metrics == nil {
		metrics = &telemetry.NoopMetricsProvider{}
	}
	return &Pool{
		active:      make(map[string]*Collector),
		retained:    make(map[string]collector.Merged),
		maxRetained: maxRetained,
		metrics:     metrics,
	}
}

// Create registers a new Collector for the given execution id, replacing
// any prior (unfinished) one on the same id.
func (p *Pool) Create(cfg Config) *Collector {
	c := New(cfg, p.metrics)
	p.mu.Lock()
	p.active[cfg.ExecutionID] = c
	p.mu.Unlock()
	return c
}

// Route delivers one partial to the active collector for its execution
// id, retiring and retaining the merge if this submission completes the
// collection. Returns (found, done, err); found is false if no
// collector is active for that execution (already completed, timed out,
// or never created).
func (p *Pool) Route(partial collector.Partial) (bool, bool, error) {
	p.mu.Lock()
	c, ok := p.active[partial.ExecutionID]
	p.mu.Unlock()
	if !ok {
		return false, false, nil
	}

	done, err := c.Submit(partial)
	if err != nil {
		return true, false, err
	}
	if !done {
		return true, false, nil
	}

	merged := c.merge()
	p.mu.Lock()
	delete(p.active, partial.ExecutionID)
	p.retain(partial.ExecutionID, merged)
	p.mu.Unlock()
	return true, true, nil
}

// Retained fetches a retired execution's merged result.
func (p *Pool) Retained(executionID string) (collector.Merged, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.retained[executionID]
	if ok {
		for i, id := range p.retainedLRU {
			if id == executionID {
				p.retainedLRU = append(append(p.retainedLRU[:i:i], p.retainedLRU[i+1:]...), executionID)
				break
			}
		}
	}
	return m, ok
}

// Active reports whether a collector for executionID is still running.
func (p *Pool) Active(executionID string) (*Collector, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.active[executionID]
	return c, ok
}

// Retire removes an execution's active collector without retaining a
// result, used when a collector times out or is explicitly cancelled.
func (p *Pool) Retire(executionID string) {
	p.mu.Lock()
	delete(p.active, executionID)
	p.mu.Unlock()
}

// retain must be called with p.mu held.
func (p *Pool) retain(executionID string, merged collector.Merged) {
	if _, exists := p.retained[executionID]; !exists {
		p.retainedLRU = append(p.retainedLRU, executionID)
	}
	p.retained[executionID] = merged

	for len(p.retainedLRU) > p.maxRetained {
		oldest := p.retainedLRU[0]
		p.retainedLRU = p.retainedLRU[1:]
		delete(p.retained, oldest)
	}
}
