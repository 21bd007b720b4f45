// Package collector implements the Result Collector: aggregation of
// partial and final results from multiple producers into one merged
// outcome, per spec §4.5.
package collector

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dispatchkit/fleet/domain/collector"
	"github.com/dispatchkit/fleet/infrastructure/logging"
	"github.com/dispatchkit/fleet/infrastructure/telemetry"
)

// Reducer folds one final partial into an accumulator for the reduce
// strategy. The accumulator starts nil on the first call.
type Reducer func(acc any, value collector.Partial) any

// ObjectMerger folds one final partial into an accumulator for the
// object strategy. Called once per distinct target, in completion order.
type ObjectMerger func(acc map[string]any, value collector.Partial)

// Config shapes a single collection.
type Config struct {
	ExecutionID     string
	ExpectedTargets int
	Strategy        collector.Strategy
	Merger          ObjectMerger // used only when Strategy == StrategyObject; nil falls back to storing the raw partial
	Reduce          Reducer      // required when Strategy == StrategyReduce
	Timeout         time.Duration
}

// Collector aggregates partials and finals for one execution id until
// ExpectedTargets distinct producers have each sent exactly one final.
type Collector struct {
	cfg     Config
	metrics telemetry.Metrics

	mu       sync.Mutex
	partials map[string][]collector.Partial // keyed by target id, in arrival order
	finals   map[string]collector.Partial   // keyed by target id
	order    []string                       // target ids in final-arrival order
	state    collector.State
	done     chan struct{}
	firstAt  time.Time // set on the first Submit, for completion-latency measurement

	streamSubs []chan collector.Partial
}

// New creates a Collector for one execution. Call Wait to block for
// completion or timeout. metrics may be nil, in which case no latency
// is recorded.
func New(cfg Config, metrics telemetry.Metrics) *Collector {
	if metrics == nil {
		metrics = &telemetry.NoopMetricsProvider{}
	}
	return &Collector{
		cfg:      cfg,
		metrics:  metrics,
		partials: make(map[string][]collector.Partial),
		finals:   make(map[string]collector.Partial),
		state:    collector.StateCollecting,
		done:     make(chan struct{}),
	}
}

// Subscribe returns a channel fed with every partial and final result as
// it arrives, whatever the merge strategy.
func (c *Collector) Subscribe() <-chan collector.Partial {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan collector.Partial, 16)
	c.streamSubs = append(c.streamSubs, ch)
	return ch
}

// Submit records one partial or final from a producer. Returns true
// once this submission completes the collection.
func (c *Collector) Submit(p collector.Partial) (bool, error) {
	if p.ExecutionID != c.cfg.ExecutionID {
		return false, collector.ErrWrongExecutionID
	}

	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return false, collector.ErrAlreadyTerminal
	}
	if c.firstAt.IsZero() {
		c.firstAt = time.Now()
	}

	if !p.Final {
		c.partials[p.TargetID] = append(c.partials[p.TargetID], p)
		c.publish(p)
		c.mu.Unlock()
		return false, nil
	}

	if _, dup := c.finals[p.TargetID]; dup {
		// Duplicate final from an already-reporting target: ignored.
		c.mu.Unlock()
		return false, nil
	}

	c.finals[p.TargetID] = p
	c.order = append(c.order, p.TargetID)
	c.publish(p)

	done := len(c.finals) >= c.cfg.ExpectedTargets
	firstAt := c.firstAt
	if done {
		c.state = collector.StateCompleted
	}
	c.mu.Unlock()

	if done {
		latency := time.Since(firstAt)
		c.metrics.RecordCollectorLatency(context.Background(), c.cfg.ExecutionID, latency)
		logging.Info().
			Add(logging.ExecutionID(c.cfg.ExecutionID)).
			Add(logging.Duration(latency)).
			Msg("collection completed")
		close(c.done)
	}
	return done, nil
}

func (c *Collector) publish(p collector.Partial) {
	for _, ch := range c.streamSubs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Wait blocks until the collection completes or its configured timeout
// elapses, whichever comes first, returning the merged result.
func (c *Collector) Wait(ctx context.Context) (collector.Merged, error) {
	if c.cfg.Strategy == collector.StrategyReduce && c.cfg.Reduce == nil {
		return collector.Merged{}, collector.ErrNoReducer
	}

	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return c.merge(), nil
	case <-timer.C:
		c.mu.Lock()
		if !c.state.Terminal() {
			c.state = collector.StateTimedOut
		}
		completed := len(c.order)
		c.mu.Unlock()
		logging.Warn().
			Add(logging.ExecutionID(c.cfg.ExecutionID)).
			Add(logging.Str("completed_targets", strconv.Itoa(completed))).
			Msg("collection timed out")
		return collector.Merged{}, collector.ErrTimeout
	case <-ctx.Done():
		return collector.Merged{}, ctx.Err()
	}
}

// CompletedTargets returns the target ids that have reported a final,
// for inclusion in a timeout error's diagnostics.
func (c *Collector) CompletedTargets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Collector) merge() collector.Merged {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta := collector.AggregateMetadata{Count: len(c.order)}
	for _, targetID := range c.order {
		p := c.finals[targetID]
		meta.TotalExecTimeMS += p.ExecTimeMS
		meta.TotalMemoryUsed += p.MemoryUsed
	}
	if meta.Count > 0 {
		meta.AvgExecTimeMS = float64(meta.TotalExecTimeMS) / float64(meta.Count)
		meta.AvgMemoryUsed = float64(meta.TotalMemoryUsed) / float64(meta.Count)
	}

	merged := collector.Merged{
		ExecutionID:      c.cfg.ExecutionID,
		Strategy:         c.cfg.Strategy,
		CompletedTargets: append([]string(nil), c.order...),
		Metadata:         meta,
	}

	switch c.cfg.Strategy {
	case collector.StrategyObject:
		obj := make(map[string]any, len(c.order))
		for _, targetID := range c.order {
			if c.cfg.Merger != nil {
				c.cfg.Merger(obj, c.finals[targetID])
			} else {
				obj[targetID] = c.finals[targetID]
			}
		}
		merged.Value = obj
	case collector.StrategyReduce:
		var acc any
		for _, targetID := range c.order {
			acc = c.cfg.Reduce(acc, c.finals[targetID])
		}
		merged.Value = acc
	default: // StrategyArray, StrategyStream
		arr := make([]collector.Partial, 0, len(c.order))
		for _, targetID := range c.order {
			arr = append(arr, c.finals[targetID])
		}
		merged.Value = arr
	}
	return merged
}
