// Package config provides the domain model for fleet configuration,
// mirroring the tunables the Dispatch Queue, Worker Pool, Heartbeat
// Monitor, Dispatch Router, and Result Collector each accept at
// construction.
package config

import "time"

// FleetConfig is the complete, validated configuration for a fleet
// supervisor instance.
type FleetConfig struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Pool      PoolConfig      `json:"pool" yaml:"pool"`
	Queue     QueueConfig     `json:"queue" yaml:"queue"`
	Backoff   BackoffConfig   `json:"backoff" yaml:"backoff"`
	Heartbeat HeartbeatConfig `json:"heartbeat" yaml:"heartbeat"`
	Router    RouterConfig    `json:"router" yaml:"router"`
	Collector CollectorConfig `json:"collector" yaml:"collector"`
}

// PoolConfig bounds the Worker Pool, per spec §6.
type PoolConfig struct {
	MinWorkers    int      `json:"minWorkers" yaml:"minWorkers"`
	MaxWorkers    int      `json:"maxWorkers" yaml:"maxWorkers"`
	IdleTimeoutMS Duration `json:"idleTimeoutMs" yaml:"idleTimeoutMs"`
	TaskTimeoutMS Duration `json:"taskTimeoutMs" yaml:"taskTimeoutMs"`
}

// QueueConfig bounds the Dispatch Queue, per spec §6.
type QueueConfig struct {
	MaxConcurrent      int      `json:"maxConcurrent" yaml:"maxConcurrent"`
	DefaultMaxAttempts int      `json:"defaultMaxAttempts" yaml:"defaultMaxAttempts"`
	DefaultTimeoutMS   Duration `json:"defaultTimeoutMs" yaml:"defaultTimeoutMs"`
}

// BackoffConfig shapes the Dispatch Queue's retry delay curve, per spec §6.
type BackoffConfig struct {
	Type       string   `json:"type" yaml:"type"` // exponential, linear, constant
	BaseMS     Duration `json:"base" yaml:"base"`
	MaxMS      Duration `json:"max" yaml:"max"`
	Multiplier float64  `json:"mult" yaml:"mult"`
	Jitter     float64  `json:"jitter" yaml:"jitter"`
}

// HeartbeatConfig tunes the Heartbeat Monitor's liveness policy, per spec §6.
type HeartbeatConfig struct {
	IntervalMS  Duration `json:"interval" yaml:"interval"`
	TimeoutMS   Duration `json:"timeout" yaml:"timeout"`
	MaxMiss     int      `json:"maxMiss" yaml:"maxMiss"`
	DegradedMS  Duration `json:"degraded" yaml:"degraded"`
	AutoRestart bool     `json:"autoRestart" yaml:"autoRestart"`
}

// RouterConfig sets the Dispatch Router's complexity cutoffs, per spec §6.
type RouterConfig struct {
	MainThreadThreshold   int `json:"mainThreadThreshold" yaml:"mainThreadThreshold"`
	SharedWorkerThreshold int `json:"sharedWorkerThreshold" yaml:"sharedWorkerThreshold"`
}

// CollectorConfig bounds the Result Collector pool's retention, per spec §6.
type CollectorConfig struct {
	MaxRetainedResults int `json:"maxRetainedResults" yaml:"maxRetainedResults"`
}

// DefaultFleetConfig returns the spec §6 default configuration.
func DefaultFleetConfig() *FleetConfig {
	return &FleetConfig{
		Name: "fleet",
		Pool: PoolConfig{
			MinWorkers:    2,
			MaxWorkers:    8,
			IdleTimeoutMS: Duration(30 * time.Second),
			TaskTimeoutMS: Duration(5 * time.Second),
		},
		Queue: QueueConfig{
			MaxConcurrent:      10,
			DefaultMaxAttempts: 3,
			DefaultTimeoutMS:   Duration(5 * time.Second),
		},
		Backoff: BackoffConfig{
			Type:       "exponential",
			BaseMS:     Duration(100 * time.Millisecond),
			MaxMS:      Duration(30 * time.Second),
			Multiplier: 2,
			Jitter:     0.1,
		},
		Heartbeat: HeartbeatConfig{
			IntervalMS:  Duration(5 * time.Second),
			TimeoutMS:   Duration(2 * time.Second),
			MaxMiss:     3,
			DegradedMS:  Duration(1 * time.Second),
			AutoRestart: true,
		},
		Router: RouterConfig{
			MainThreadThreshold:   10,
			SharedWorkerThreshold: 50,
		},
		Collector: CollectorConfig{
			MaxRetainedResults: 100,
		},
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
