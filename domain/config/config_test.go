package config

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefaultFleetConfig(t *testing.T) {
	cfg := DefaultFleetConfig()

	if cfg.Pool.MinWorkers != 2 {
		t.Errorf("Pool.MinWorkers = %d, want 2", cfg.Pool.MinWorkers)
	}
	if cfg.Pool.MaxWorkers != 8 {
		t.Errorf("Pool.MaxWorkers = %d, want 8", cfg.Pool.MaxWorkers)
	}
	if cfg.Queue.MaxConcurrent != 10 {
		t.Errorf("Queue.MaxConcurrent = %d, want 10", cfg.Queue.MaxConcurrent)
	}
	if cfg.Backoff.Type != "exponential" {
		t.Errorf("Backoff.Type = %s, want exponential", cfg.Backoff.Type)
	}
	if cfg.Heartbeat.MaxMiss != 3 {
		t.Errorf("Heartbeat.MaxMiss = %d, want 3", cfg.Heartbeat.MaxMiss)
	}
	if !cfg.Heartbeat.AutoRestart {
		t.Error("Heartbeat.AutoRestart = false, want true")
	}
	if cfg.Router.SharedWorkerThreshold <= cfg.Router.MainThreadThreshold {
		t.Error("Router.SharedWorkerThreshold should exceed MainThreadThreshold")
	}
	if cfg.Collector.MaxRetainedResults != 100 {
		t.Errorf("Collector.MaxRetainedResults = %d, want 100", cfg.Collector.MaxRetainedResults)
	}
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	d := Duration(30 * time.Second)

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `"30s"` {
		t.Errorf("Marshal() = %s, want \"30s\"", b)
	}

	var got Duration
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got != d {
		t.Errorf("Unmarshal() = %v, want %v", got, d)
	}
}

func TestDuration_JSONNull(t *testing.T) {
	var d Duration = Duration(5 * time.Second)
	if err := d.UnmarshalJSON([]byte("null")); err != nil {
		t.Fatalf("UnmarshalJSON(null) error = %v", err)
	}
	if d != Duration(5*time.Second) {
		t.Error("UnmarshalJSON(null) should leave the value unchanged")
	}
}

func TestDuration_YAMLRoundTrip(t *testing.T) {
	type wrapper struct {
		D Duration `yaml:"d"`
	}
	w := wrapper{D: Duration(100 * time.Millisecond)}

	b, err := yaml.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got wrapper
	if err := yaml.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.D != w.D {
		t.Errorf("Unmarshal() = %v, want %v", got.D, w.D)
	}
}

func TestDuration_InvalidString(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte(`"not-a-duration"`)); err == nil {
		t.Fatal("expected error for invalid duration string")
	}
}
