package dispatch

import "errors"

// Error taxonomy for dispatch outcomes. The Queue is the only subsystem
// that decides whether a Transient failure is retried; the other kinds
// are always terminal to the current attempt.
var (
	// ErrValidation marks a malformed dispatch or message. Never retried.
	ErrValidation = errors.New("dispatch: validation error")

	// ErrTransient marks a worker error, channel glitch, or per-task
	// timeout. Retried by the Queue subject to MaxAttempts.
	ErrTransient = errors.New("dispatch: transient error")

	// ErrLiveness marks a heartbeat-triggered worker restart. Surfaces to
	// the caller as the current dispatch failing Transient, never as this
	// error directly.
	ErrLiveness = errors.New("dispatch: liveness error")

	// ErrExhausted marks retries exhausted; LastError carries the cause.
	ErrExhausted = errors.New("dispatch: retries exhausted")

	// ErrDeadline marks a dispatch that outlived its deadline.
	ErrDeadline = errors.New("dispatch: deadline exceeded")

	// ErrCancelled marks caller cancellation or pool/queue shutdown.
	ErrCancelled = errors.New("dispatch: cancelled")

	// ErrRouting marks a request with no suitable target available.
	// Fatal to the single request, not to the system.
	ErrRouting = errors.New("dispatch: no route available")

	// ErrNotFound is returned when an id does not correspond to a known
	// dispatch (e.g. cancelling an unknown or already-terminal id).
	ErrNotFound = errors.New("dispatch: not found")
)
