package collector

import "errors"

// Domain errors for collector operations.
var (
	// ErrWrongExecutionID marks a partial addressed to the wrong execution.
	ErrWrongExecutionID = errors.New("collector: wrong execution id")

	// ErrAlreadyTerminal marks a call made after the collector completed,
	// timed out, errored, or was cancelled.
	ErrAlreadyTerminal = errors.New("collector: already terminal")

	// ErrNoReducer marks a reduce strategy with no reducer supplied.
	ErrNoReducer = errors.New("collector: reduce strategy requires a reducer")

	// ErrUnknownStrategy marks an unrecognized merge strategy.
	ErrUnknownStrategy = errors.New("collector: unknown merge strategy")

	// ErrNotFound marks a lookup for an unknown execution id.
	ErrNotFound = errors.New("collector: not found")

	// ErrTimeout marks a collection that did not complete within its
	// configured timeout.
	ErrTimeout = errors.New("collector: timed out")
)
