package statemachine

import "github.com/felixgeelhaar/statekit"

// recordDispatchReason stashes the event's reason (if any) onto the
// dispatch context, mirroring the teacher's entry-logging actions.
func recordDispatchReason(ctx **DispatchContext, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	if reason, ok := event.Payload.(string); ok {
		(*ctx).Reason = reason
	}
}

func recordWorkerReason(ctx **WorkerContext, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	if reason, ok := event.Payload.(string); ok {
		(*ctx).Reason = reason
	}
}
