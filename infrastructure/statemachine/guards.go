package statemachine

import "github.com/felixgeelhaar/statekit"

// guardDispatchNotCancelPending blocks queued-ready -> in-flight once
// the queue has marked a cancel pending against the dispatch.
func guardDispatchNotCancelPending(ctx *DispatchContext, _ statekit.Event) bool {
	if ctx == nil || ctx.Dispatch == nil {
		return true
	}
	return !ctx.Dispatch.CancelPending
}
