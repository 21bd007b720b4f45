// Package telemetry provides observability infrastructure including
// OpenTelemetry metrics support for the dispatch runtime.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	dispatchesEnqueued  metric.Int64Counter
	dispatchesCompleted metric.Int64Counter
	retries             metric.Int64Counter
	timeouts            metric.Int64Counter
	cacheHits           metric.Int64Counter
	cacheMisses         metric.Int64Counter
	missedHeartbeats    metric.Int64Counter
	workersRestarted    metric.Int64Counter
	errors              metric.Int64Counter

	// Histograms
	queueWaitDuration   metric.Float64Histogram
	executionDuration   metric.Float64Histogram
	heartbeatRTT        metric.Float64Histogram
	collectorLatency    metric.Float64Histogram

	// Gauges (using UpDownCounter for OpenTelemetry)
	queueDepth    metric.Int64UpDownCounter
	activeWorkers metric.Int64UpDownCounter
	idleWorkers   metric.Int64UpDownCounter

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: "github.com/dispatchkit/fleet").
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Attributes are default attributes to attach to all metrics.
	Attributes []attribute.KeyValue
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/dispatchkit/fleet",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config = DefaultMetricsConfig()
	}

	provider := otel.GetMeterProvider()
	meter := provider.Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
	)

	mp := &MetricsProvider{
		meter: meter,
	}

	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})

	return mp
}

// initInstruments initializes all metric instruments.
func (mp *MetricsProvider) initInstruments() error {
	var err error

	// Counters
	mp.dispatchesEnqueued, err = mp.meter.Int64Counter(
		"fleet.dispatch.enqueued",
		metric.WithDescription("Number of dispatches enqueued"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return err
	}

	mp.dispatchesCompleted, err = mp.meter.Int64Counter(
		"fleet.dispatch.completed",
		metric.WithDescription("Number of dispatches reaching a terminal status"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return err
	}

	mp.retries, err = mp.meter.Int64Counter(
		"fleet.dispatch.retries",
		metric.WithDescription("Number of dispatch retry attempts"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return err
	}

	mp.timeouts, err = mp.meter.Int64Counter(
		"fleet.dispatch.timeouts",
		metric.WithDescription("Number of dispatches that hit their deadline"),
		metric.WithUnit("{timeout}"),
	)
	if err != nil {
		return err
	}

	mp.cacheHits, err = mp.meter.Int64Counter(
		"fleet.router.cache_hits",
		metric.WithDescription("Number of router complexity scores served from cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	mp.cacheMisses, err = mp.meter.Int64Counter(
		"fleet.router.cache_misses",
		metric.WithDescription("Number of router complexity scores computed fresh"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	mp.missedHeartbeats, err = mp.meter.Int64Counter(
		"fleet.heartbeat.missed",
		metric.WithDescription("Number of missed heartbeat beats across all workers"),
		metric.WithUnit("{beat}"),
	)
	if err != nil {
		return err
	}

	mp.workersRestarted, err = mp.meter.Int64Counter(
		"fleet.worker.restarted",
		metric.WithDescription("Number of workers restarted after a declared failure"),
		metric.WithUnit("{worker}"),
	)
	if err != nil {
		return err
	}

	mp.errors, err = mp.meter.Int64Counter(
		"fleet.errors",
		metric.WithDescription("Number of errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	// Histograms
	mp.queueWaitDuration, err = mp.meter.Float64Histogram(
		"fleet.dispatch.queue_wait",
		metric.WithDescription("Time a dispatch spent queued before dispatch"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.executionDuration, err = mp.meter.Float64Histogram(
		"fleet.dispatch.execution_duration",
		metric.WithDescription("Duration of a worker's execution of a dispatch"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.heartbeatRTT, err = mp.meter.Float64Histogram(
		"fleet.heartbeat.rtt",
		metric.WithDescription("Round-trip time of a heartbeat probe"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.collectorLatency, err = mp.meter.Float64Histogram(
		"fleet.collector.completion_latency",
		metric.WithDescription("Time from first partial to merged completion"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	// Gauges (UpDownCounters)
	mp.queueDepth, err = mp.meter.Int64UpDownCounter(
		"fleet.queue.depth",
		metric.WithDescription("Number of dispatches currently tracked by the queue"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return err
	}

	mp.activeWorkers, err = mp.meter.Int64UpDownCounter(
		"fleet.pool.active_workers",
		metric.WithDescription("Number of workers currently busy"),
		metric.WithUnit("{worker}"),
	)
	if err != nil {
		return err
	}

	mp.idleWorkers, err = mp.meter.Int64UpDownCounter(
		"fleet.pool.idle_workers",
		metric.WithDescription("Number of workers currently idle"),
		metric.WithUnit("{worker}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordDispatchEnqueued records a dispatch entering the queue.
func (mp *MetricsProvider) RecordDispatchEnqueued(ctx context.Context, targetType string) {
	mp.dispatchesEnqueued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target.type", targetType),
	))
}

// RecordDispatchCompleted records a dispatch reaching a terminal status.
func (mp *MetricsProvider) RecordDispatchCompleted(ctx context.Context, status string, queueWait, execution time.Duration) {
	attrs := []attribute.KeyValue{attribute.String("status", status)}
	mp.dispatchesCompleted.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.queueWaitDuration.Record(ctx, float64(queueWait.Milliseconds()), metric.WithAttributes(attrs...))
	mp.executionDuration.Record(ctx, float64(execution.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordRetry records a dispatch retry attempt.
func (mp *MetricsProvider) RecordRetry(ctx context.Context, attempt int) {
	mp.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("attempt", attempt),
	))
}

// RecordTimeout records a dispatch hitting its deadline.
func (mp *MetricsProvider) RecordTimeout(ctx context.Context, status string) {
	mp.timeouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordRouterCacheHit records a router complexity score served from cache.
func (mp *MetricsProvider) RecordRouterCacheHit(ctx context.Context) {
	mp.cacheHits.Add(ctx, 1)
}

// RecordRouterCacheMiss records a router complexity score computed fresh.
func (mp *MetricsProvider) RecordRouterCacheMiss(ctx context.Context) {
	mp.cacheMisses.Add(ctx, 1)
}

// RecordHeartbeatRTT records the round-trip time of a heartbeat probe.
func (mp *MetricsProvider) RecordHeartbeatRTT(ctx context.Context, workerID string, rtt time.Duration) {
	mp.heartbeatRTT.Record(ctx, float64(rtt.Milliseconds()), metric.WithAttributes(
		attribute.String("worker.id", workerID),
	))
}

// RecordMissedHeartbeat records a missed heartbeat beat.
func (mp *MetricsProvider) RecordMissedHeartbeat(ctx context.Context, workerID string, missedCount int) {
	mp.missedHeartbeats.Add(ctx, 1, metric.WithAttributes(
		attribute.String("worker.id", workerID),
		attribute.Int("missed_count", missedCount),
	))
}

// RecordWorkerRestarted records a worker restart after a declared failure.
func (mp *MetricsProvider) RecordWorkerRestarted(ctx context.Context, workerID string) {
	mp.workersRestarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("worker.id", workerID),
	))
}

// RecordCollectorLatency records the time from first partial to merged completion.
func (mp *MetricsProvider) RecordCollectorLatency(ctx context.Context, executionID string, latency time.Duration) {
	mp.collectorLatency.Record(ctx, float64(latency.Milliseconds()), metric.WithAttributes(
		attribute.String("execution.id", executionID),
	))
}

// RecordError records an error.
func (mp *MetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
	attrs := []attribute.KeyValue{
		attribute.String("error.type", errorType),
	}
	for k, v := range details {
		attrs = append(attrs, attribute.String(k, v))
	}

	mp.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// SetQueueDepth adjusts the queue-depth gauge by delta.
func (mp *MetricsProvider) SetQueueDepth(ctx context.Context, delta int64) {
	mp.queueDepth.Add(ctx, delta)
}

// SetActiveWorkers adjusts the active-worker gauge by delta.
func (mp *MetricsProvider) SetActiveWorkers(ctx context.Context, delta int64) {
	mp.activeWorkers.Add(ctx, delta)
}

// SetIdleWorkers adjusts the idle-worker gauge by delta.
func (mp *MetricsProvider) SetIdleWorkers(ctx context.Context, delta int64) {
	mp.idleWorkers.Add(ctx, delta)
}

// NoopMetricsProvider is a no-op metrics provider for testing or when metrics are disabled.
type NoopMetricsProvider struct{}

// RecordDispatchEnqueued is a no-op.
func (n *NoopMetricsProvider) RecordDispatchEnqueued(ctx context.Context, targetType string) {}

// RecordDispatchCompleted is a no-op.
func (n *NoopMetricsProvider) RecordDispatchCompleted(ctx context.Context, status string, queueWait, execution time.Duration) {
}

// RecordRetry is a no-op.
func (n *NoopMetricsProvider) RecordRetry(ctx context.Context, attempt int) {}

// RecordTimeout is a no-op.
func (n *NoopMetricsProvider) RecordTimeout(ctx context.Context, status string) {}

// RecordRouterCacheHit is a no-op.
func (n *NoopMetricsProvider) RecordRouterCacheHit(ctx context.Context) {}

// RecordRouterCacheMiss is a no-op.
func (n *NoopMetricsProvider) RecordRouterCacheMiss(ctx context.Context) {}

// RecordHeartbeatRTT is a no-op.
func (n *NoopMetricsProvider) RecordHeartbeatRTT(ctx context.Context, workerID string, rtt time.Duration) {
}

// RecordMissedHeartbeat is a no-op.
func (n *NoopMetricsProvider) RecordMissedHeartbeat(ctx context.Context, workerID string, missedCount int) {
}

// RecordWorkerRestarted is a no-op.
func (n *NoopMetricsProvider) RecordWorkerRestarted(ctx context.Context, workerID string) {}

// RecordCollectorLatency is a no-op.
func (n *NoopMetricsProvider) RecordCollectorLatency(ctx context.Context, executionID string, latency time.Duration) {
}

// RecordError is a no-op.
func (n *NoopMetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
}

// SetQueueDepth is a no-op.
func (n *NoopMetricsProvider) SetQueueDepth(ctx context.Context, delta int64) {}

// SetActiveWorkers is a no-op.
func (n *NoopMetricsProvider) SetActiveWorkers(ctx context.Context, delta int64) {}

// SetIdleWorkers is a no-op.
func (n *NoopMetricsProvider) SetIdleWorkers(ctx context.Context, delta int64) {}

// Metrics defines the interface for metrics recording.
type Metrics interface {
	RecordDispatchEnqueued(ctx context.Context, targetType string)
	RecordDispatchCompleted(ctx context.Context, status string, queueWait, execution time.Duration)
	RecordRetry(ctx context.Context, attempt int)
	RecordTimeout(ctx context.Context, status string)
	RecordRouterCacheHit(ctx context.Context)
	RecordRouterCacheMiss(ctx context.Context)
	RecordHeartbeatRTT(ctx context.Context, workerID string, rtt time.Duration)
	RecordMissedHeartbeat(ctx context.Context, workerID string, missedCount int)
	RecordWorkerRestarted(ctx context.Context, workerID string)
	RecordCollectorLatency(ctx context.Context, executionID string, latency time.Duration)
	RecordError(ctx context.Context, errorType string, details map[string]string)
	SetQueueDepth(ctx context.Context, delta int64)
	SetActiveWorkers(ctx context.Context, delta int64)
	SetIdleWorkers(ctx context.Context, delta int64)
}

// Ensure implementations satisfy the interface.
var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = (*NoopMetricsProvider)(nil)
)
