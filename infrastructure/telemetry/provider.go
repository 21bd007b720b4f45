package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ExporterKind names a metrics exporter backend.
type ExporterKind string

// Exporter backends a ProviderConfig may select.
const (
	ExporterNoop   ExporterKind = "noop"
	ExporterStdout ExporterKind = "stdout"
)

// ProviderConfig configures process-wide metrics export: a stdout
// exporter or none (noop).
type ProviderConfig struct {
	Exporter ExporterKind
	Interval time.Duration
	Metrics  MetricsConfig
}

// DefaultProviderConfig returns a noop-exporter configuration: metrics
// instruments still record, but nothing reads them back out.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Exporter: ExporterNoop,
		Interval: 15 * time.Second,
		Metrics:  DefaultMetricsConfig(),
	}
}

// NewProvider installs a global OTel MeterProvider per cfg.Exporter and
// returns a MetricsProvider bound to it, plus a shutdown func that
// flushes and stops periodic export. Callers that never invoke this
// keep the process's existing (by default noop) global MeterProvider.
func NewProvider(cfg ProviderConfig) (*MetricsProvider, func(context.Context) error, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, err
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.Interval))),
		)
		otel.SetMeterProvider(mp)
		return NewMetricsProvider(cfg.Metrics), mp.Shutdown, nil
	default:
		return NewMetricsProvider(cfg.Metrics), func(context.Context) error { return nil }, nil
	}
}
