// Package pool implements the Worker Pool: a bounded set of isolated
// workers, idle/busy/dead lifecycle, and message-correlated dispatch.
package pool

import (
	"context"

	"github.com/dispatchkit/fleet/domain/protocol"
)

// WorkerProc is one isolated worker's transport. The pool never assumes
// what backs it: a real subprocess, a container, a wasm host, or (in
// tests and the CLI's local-demo mode) an in-process goroutine.
type WorkerProc interface {
	// Send delivers an envelope to the worker (dispatch:*, execute,
	// cancel, cleanup, or heartbeat).
	Send(ctx context.Context, env protocol.Envelope) error

	// Recv blocks for the worker's next envelope (result, progress,
	// error, complete, or heartbeat-reply). Returns an error when the
	// worker's transport is closed or broken.
	Recv(ctx context.Context) (protocol.Envelope, error)

	// Terminate forcibly stops the worker and releases its resources.
	Terminate() error
}

// WorkerProcFactory spawns a new WorkerProc, assigning it the given ID.
type WorkerProcFactory func(id string) (WorkerProc, error)
