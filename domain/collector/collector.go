// Package collector defines the entities the Result Collector aggregates
// fan-out replies into.
package collector

import (
	"encoding/json"
	"time"
)

// Strategy selects how finals from distinct targets are merged.
type Strategy string

// Merge strategies, per spec §4.5.
const (
	StrategyArray  Strategy = "array"
	StrategyObject Strategy = "object"
	StrategyReduce Strategy = "reduce"
	StrategyStream Strategy = "stream"
)

// Partial is one reply from a target: either an intermediate progress
// update or the target's single final result.
type Partial struct {
	ExecutionID string          `json:"executionId"`
	TargetID    string          `json:"targetId"`
	Data        json.RawMessage `json:"data"`
	Final       bool            `json:"final"`
	ExecTimeMS  int64           `json:"execTimeMs,omitempty"`
	MemoryUsed  int64           `json:"memoryUsed,omitempty"`
	ReceivedAt  time.Time       `json:"receivedAt"`
}

// State is the lifecycle state of a Collector.
type State string

// Collector states.
const (
	StateCollecting State = "collecting"
	StateCompleted  State = "completed"
	StateTimedOut   State = "timed-out"
	StateErrored    State = "errored"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether the state admits no further mutation.
func (s State) Terminal() bool {
	return s != StateCollecting
}

// AggregateMetadata summarizes exec-time and memory across finals only.
type AggregateMetadata struct {
	Count          int
	TotalExecTimeMS int64
	AvgExecTimeMS   float64
	TotalMemoryUsed int64
	AvgMemoryUsed   float64
}

// Merged is the outcome of a completed collection.
type Merged struct {
	ExecutionID       string
	Strategy          Strategy
	Value             any
	CompletedTargets  []string
	Metadata          AggregateMetadata
}
