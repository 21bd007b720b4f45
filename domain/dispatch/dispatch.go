// Package dispatch defines the Dispatch and Bundle entities the Dispatch
// Queue owns for the lifetime of a request.
package dispatch

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Bundle is an opaque unit of work, identified by content fingerprint.
// It is immutable once created.
type Bundle struct {
	Fingerprint      string          `json:"fingerprint"`
	SizeKB           int             `json:"sizeKb"`
	Dependencies     []string        `json:"dependencies,omitempty"`
	RequiresGPU      bool            `json:"requiresGpu"`
	RequiresSharedMem bool           `json:"requiresSharedMem"`
	DeclaredPriority int             `json:"declaredPriority,omitempty"`
	Payload          json.RawMessage `json:"payload"`
}

// Status is the lifecycle state of a Dispatch.
type Status string

// Dispatch states, per the queue's state machine.
const (
	StatusQueuedWaiting Status = "queued-waiting"
	StatusQueuedReady   Status = "queued-ready"
	StatusInFlight      Status = "in-flight"
	StatusBackoff       Status = "backoff"
	StatusDone          Status = "done"
	StatusFailed        Status = "failed"
	StatusCancelled     Status = "cancelled"
	StatusTimedOut      Status = "timed-out"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// Dispatch is a request to run a Bundle, tracked through retries until
// terminal. Only the Dispatch Queue mutates a Dispatch's fields.
type Dispatch struct {
	ID            string
	Bundle        Bundle
	Priority      int
	Attempts      int
	MaxAttempts   int
	NextReadyAt   time.Time
	CreatedAt     time.Time
	Deadline      time.Time
	LastError     error
	Status        Status
	CancelPending bool
	DeadlinePending bool
}

// New creates a Dispatch in the queued-waiting state, assigning it a fresh
// UUID that stays stable across its retries.
func New(bundle Bundle, priority, maxAttempts int, timeout time.Duration) *Dispatch {
	now := time.Now()
	return &Dispatch{
		ID:          uuid.NewString(),
		Bundle:      bundle,
		Priority:    priority,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		NextReadyAt: now,
		Deadline:    now.Add(timeout),
		Status:      StatusQueuedWaiting,
	}
}

// Ready reports whether the dispatch may be promoted to the ready set.
func (d *Dispatch) Ready(now time.Time) bool {
	return !d.Status.Terminal() && d.Status != StatusInFlight && !now.Before(d.NextReadyAt)
}

// Expired reports whether the dispatch has outlived its deadline.
func (d *Dispatch) Expired(now time.Time) bool {
	return now.After(d.Deadline) || now.Equal(d.Deadline)
}

// ExhaustedRetries reports whether the attempt ceiling has been reached,
// i.e. whether no further attempt is permitted.
func (d *Dispatch) ExhaustedRetries() bool {
	return d.Attempts >= d.MaxAttempts
}
