package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/dispatchkit/fleet/domain/dispatch"
	"github.com/dispatchkit/fleet/domain/worker"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for dispatch runtime logging.

// DispatchID adds a dispatch ID field.
func DispatchID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("dispatch_id", id)
	}
}

// ExecutionID adds an execution ID field.
func ExecutionID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("execution_id", id)
	}
}

// WorkerID adds a worker ID field.
func WorkerID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("worker_id", id)
	}
}

// Fingerprint adds a bundle content-fingerprint field.
func Fingerprint(fp string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("fingerprint", fp)
	}
}

// DispatchStatus adds a dispatch status field.
func DispatchStatus(s dispatch.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("status", string(s))
	}
}

// FromStatus adds a from_status field for transitions.
func FromStatus(s dispatch.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_status", string(s))
	}
}

// ToStatus adds a to_status field for transitions.
func ToStatus(s dispatch.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_status", string(s))
	}
}

// WorkerState adds a worker lifecycle state field.
func WorkerState(s worker.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("worker_state", string(s))
	}
}

// Attempt adds an attempt-number field.
func Attempt(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("attempt", n)
	}
}

// Priority adds a priority field.
func Priority(p int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("priority", p)
	}
}

// TargetType adds a routing target-type field.
func TargetType(t string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("target_type", t)
	}
}

// Strategy adds a merge-strategy field.
func Strategy(s string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("strategy", s)
	}
}

// Score adds a routing-score field.
func Score(score float64) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Float64("score", score)
	}
}

// MissedBeats adds a heartbeat miss-count field.
func MissedBeats(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("missed_beats", n)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// DurationNs adds a duration field in nanoseconds.
func DurationNs(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ns", d.Nanoseconds())
	}
}

// Cached adds a cached field.
func Cached(cached bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("cached", cached)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Operation adds an operation field.
func Operation(op string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("operation", op)
	}
}

// Reason adds a reason field.
func Reason(reason string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("reason", reason)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
