// Package api provides the public surface of the fleet library: a
// supervisor that wires the Dispatch Queue, Worker Pool, Heartbeat
// Monitor, Dispatch Router, and Result Collector into one running
// system from a single FleetConfig.
package api

import (
	"context"

	domainconfig "github.com/dispatchkit/fleet/domain/config"
	infraconfig "github.com/dispatchkit/fleet/infrastructure/config"
	"github.com/dispatchkit/fleet/infrastructure/telemetry"
)

// Re-export domain configuration types so callers need only import
// this package.
type (
	// FleetConfig is the complete, validated fleet configuration.
	FleetConfig = domainconfig.FleetConfig
	// PoolConfig bounds the Worker Pool.
	PoolConfig = domainconfig.PoolConfig
	// QueueConfig bounds the Dispatch Queue.
	QueueConfig = domainconfig.QueueConfig
	// BackoffConfig shapes the Dispatch Queue's retry curve.
	BackoffConfig = domainconfig.BackoffConfig
	// HeartbeatConfig tunes the Heartbeat Monitor.
	HeartbeatConfig = domainconfig.HeartbeatConfig
	// RouterConfig sets the Dispatch Router's thresholds.
	RouterConfig = domainconfig.RouterConfig
	// CollectorConfig bounds the Result Collector pool.
	CollectorConfig = domainconfig.CollectorConfig
	// ConfigDuration is a time.Duration with JSON/YAML string support.
	ConfigDuration = domainconfig.Duration

	// ValidationError is a single configuration validation failure.
	ValidationError = domainconfig.ValidationError
	// ValidationErrors is a collection of validation failures.
	ValidationErrors = domainconfig.ValidationErrors
)

// Re-export infrastructure configuration types.
type (
	// ConfigLoader loads fleet configuration from files, readers, or strings.
	ConfigLoader = infraconfig.Loader
	// ConfigFormat names a configuration file format.
	ConfigFormat = infraconfig.Format
	// ConfigBuilder converts a FleetConfig into subsystem Config values.
	ConfigBuilder = infraconfig.Builder
	// LoaderOption configures a ConfigLoader.
	ConfigLoaderOption = infraconfig.LoaderOption
)

// Re-export configuration format constants.
const (
	FormatYAML = infraconfig.FormatYAML
	FormatJSON = infraconfig.FormatJSON
)

// NewConfigLoader creates a configuration loader with default settings
// (environment expansion and validation enabled).
func NewConfigLoader() *ConfigLoader {
	return infraconfig.NewLoader()
}

// NewConfigLoaderWithOptions creates a configuration loader with the
// given options applied over the defaults.
func NewConfigLoaderWithOptions(opts ...ConfigLoaderOption) *ConfigLoader {
	return infraconfig.NewLoaderWithOptions(opts...)
}

// WithEnvExpansion enables or disables environment variable expansion.
func WithEnvExpansion(enabled bool) ConfigLoaderOption {
	return infraconfig.WithEnvExpansion(enabled)
}

// WithStrictEnv enables strict environment variable checking.
func WithStrictEnv(enabled bool) ConfigLoaderOption {
	return infraconfig.WithStrictEnv(enabled)
}

// WithValidation enables or disables configuration validation.
func WithValidation(enabled bool) ConfigLoaderOption {
	return infraconfig.WithValidation(enabled)
}

// NewConfigBuilder creates a builder over the given configuration.
func NewConfigBuilder(cfg *FleetConfig) *ConfigBuilder {
	return infraconfig.NewBuilder(cfg)
}

// DefaultFleetConfig returns the spec §6 default configuration.
func DefaultFleetConfig() *FleetConfig {
	return domainconfig.DefaultFleetConfig()
}

// Re-export metrics provider types.
type (
	// MetricsExporter names a metrics exporter backend.
	MetricsExporter = telemetry.ExporterKind
	// MetricsProviderConfig configures process-wide metrics export.
	MetricsProviderConfig = telemetry.ProviderConfig
)

// Metrics exporter backends.
const (
	MetricsExporterNoop   = telemetry.ExporterNoop
	MetricsExporterStdout = telemetry.ExporterStdout
)

// NewMetricsProvider installs a global metrics exporter per cfg and
// returns the Metrics implementation to pass as Options.Metrics, plus
// a shutdown func to flush and stop export.
func NewMetricsProvider(cfg MetricsProviderConfig) (telemetry.Metrics, func(context.Context) error, error) {
	return telemetry.NewProvider(cfg)
}

// DefaultMetricsProviderConfig returns a noop-exporter metrics configuration.
func DefaultMetricsProviderConfig() MetricsProviderConfig {
	return telemetry.DefaultProviderConfig()
}
