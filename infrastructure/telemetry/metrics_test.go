package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMetrics sets up a test meter provider and returns it along with a reader.
func setupTestMetrics(t *testing.T) (*metric.ManualReader, *MetricsProvider) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)

	mp := NewMetricsProvider(DefaultMetricsConfig())
	if mp.Error() != nil {
		t.Fatalf("failed to create metrics provider: %v", mp.Error())
	}

	return reader, mp
}

func TestNewMetricsProvider(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	if mp == nil {
		t.Fatal("NewMetricsProvider returned nil")
	}
	if mp.Error() != nil {
		t.Errorf("unexpected error: %v", mp.Error())
	}
}

func TestMetricsProvider_RecordDispatchEnqueued(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordDispatchEnqueued(ctx, "shared-worker")
	mp.RecordDispatchEnqueued(ctx, "in-process")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "fleet.dispatch.enqueued" {
				found = true
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					t.Errorf("expected Sum[int64], got %T", m.Data)
					continue
				}
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				if total != 2 {
					t.Errorf("expected 2 dispatches enqueued, got %d", total)
				}
			}
		}
	}
	if !found {
		t.Error("fleet.dispatch.enqueued metric not found")
	}
}

func TestMetricsProvider_RecordDispatchCompleted(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordDispatchCompleted(ctx, "done", 10*time.Millisecond, 100*time.Millisecond)
	mp.RecordDispatchCompleted(ctx, "failed", 5*time.Millisecond, 50*time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	foundCompleted := false
	foundWait := false
	foundExec := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "fleet.dispatch.completed":
				foundCompleted = true
			case "fleet.dispatch.queue_wait":
				foundWait = true
			case "fleet.dispatch.execution_duration":
				foundExec = true
			}
		}
	}
	if !foundCompleted {
		t.Error("fleet.dispatch.completed metric not found")
	}
	if !foundWait {
		t.Error("fleet.dispatch.queue_wait metric not found")
	}
	if !foundExec {
		t.Error("fleet.dispatch.execution_duration metric not found")
	}
}

func TestMetricsProvider_RecordRetry(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordRetry(ctx, 1)
	mp.RecordRetry(ctx, 2)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "fleet.dispatch.retries" {
				found = true
			}
		}
	}
	if !found {
		t.Error("fleet.dispatch.retries metric not found")
	}
}

func TestMetricsProvider_RecordTimeout(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordTimeout(ctx, "timed-out")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "fleet.dispatch.timeouts" {
				found = true
			}
		}
	}
	if !found {
		t.Error("fleet.dispatch.timeouts metric not found")
	}
}

func TestMetricsProvider_RecordRouterCacheHitMiss(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordRouterCacheHit(ctx)
	mp.RecordRouterCacheMiss(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	foundHits := false
	foundMisses := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "fleet.router.cache_hits" {
				foundHits = true
			}
			if m.Name == "fleet.router.cache_misses" {
				foundMisses = true
			}
		}
	}
	if !foundHits {
		t.Error("fleet.router.cache_hits metric not found")
	}
	if !foundMisses {
		t.Error("fleet.router.cache_misses metric not found")
	}
}

func TestMetricsProvider_RecordHeartbeat(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordHeartbeatRTT(ctx, "w1", 15*time.Millisecond)
	mp.RecordMissedHeartbeat(ctx, "w1", 2)
	mp.RecordWorkerRestarted(ctx, "w1")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	foundRTT := false
	foundMissed := false
	foundRestarted := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "fleet.heartbeat.rtt":
				foundRTT = true
			case "fleet.heartbeat.missed":
				foundMissed = true
			case "fleet.worker.restarted":
				foundRestarted = true
			}
		}
	}
	if !foundRTT {
		t.Error("fleet.heartbeat.rtt metric not found")
	}
	if !foundMissed {
		t.Error("fleet.heartbeat.missed metric not found")
	}
	if !foundRestarted {
		t.Error("fleet.worker.restarted metric not found")
	}
}

func TestMetricsProvider_RecordCollectorLatency(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordCollectorLatency(ctx, "exec-1", 200*time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "fleet.collector.completion_latency" {
				found = true
			}
		}
	}
	if !found {
		t.Error("fleet.collector.completion_latency metric not found")
	}
}

func TestMetricsProvider_Gauges(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.SetQueueDepth(ctx, 5)
	mp.SetQueueDepth(ctx, -1)
	mp.SetActiveWorkers(ctx, 2)
	mp.SetIdleWorkers(ctx, 3)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	foundDepth := false
	foundActive := false
	foundIdle := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "fleet.queue.depth":
				foundDepth = true
			case "fleet.pool.active_workers":
				foundActive = true
			case "fleet.pool.idle_workers":
				foundIdle = true
			}
		}
	}
	if !foundDepth {
		t.Error("fleet.queue.depth metric not found")
	}
	if !foundActive {
		t.Error("fleet.pool.active_workers metric not found")
	}
	if !foundIdle {
		t.Error("fleet.pool.idle_workers metric not found")
	}
}

func TestMetricsProvider_RecordError(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordError(ctx, "validation", map[string]string{
		"worker.id": "w1",
		"reason":    "invalid bundle",
	})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "fleet.errors" {
				found = true
			}
		}
	}
	if !found {
		t.Error("fleet.errors metric not found")
	}
}

func TestNoopMetricsProvider(t *testing.T) {
	// Verify that NoopMetricsProvider doesn't panic
	noop := &NoopMetricsProvider{}
	ctx := context.Background()

	noop.RecordDispatchEnqueued(ctx, "shared-worker")
	noop.RecordDispatchCompleted(ctx, "done", time.Second, time.Second)
	noop.RecordRetry(ctx, 1)
	noop.RecordTimeout(ctx, "timed-out")
	noop.RecordRouterCacheHit(ctx)
	noop.RecordRouterCacheMiss(ctx)
	noop.RecordHeartbeatRTT(ctx, "w1", time.Millisecond)
	noop.RecordMissedHeartbeat(ctx, "w1", 1)
	noop.RecordWorkerRestarted(ctx, "w1")
	noop.RecordCollectorLatency(ctx, "exec-1", time.Second)
	noop.RecordError(ctx, "type", nil)
	noop.SetQueueDepth(ctx, 1)
	noop.SetActiveWorkers(ctx, 1)
	noop.SetIdleWorkers(ctx, 1)
}

func TestDefaultMetricsConfig(t *testing.T) {
	config := DefaultMetricsConfig()

	if config.MeterName == "" {
		t.Error("MeterName should not be empty")
	}
	if config.MeterVersion == "" {
		t.Error("MeterVersion should not be empty")
	}
}
