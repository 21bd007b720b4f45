// Package statemachine provides the statekit integration for the
// Dispatch and Worker lifecycles.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/dispatchkit/fleet/domain/dispatch"
	"github.com/dispatchkit/fleet/domain/worker"
)

// DispatchContext carries a Dispatch through its statekit machine.
type DispatchContext struct {
	Dispatch *dispatch.Dispatch
	Reason   string
}

// Dispatch state IDs, mirrored from domain/dispatch.Status.
const (
	dispatchQueuedWaiting statekit.StateID = statekit.StateID(dispatch.StatusQueuedWaiting)
	dispatchQueuedReady   statekit.StateID = statekit.StateID(dispatch.StatusQueuedReady)
	dispatchInFlight      statekit.StateID = statekit.StateID(dispatch.StatusInFlight)
	dispatchBackoff       statekit.StateID = statekit.StateID(dispatch.StatusBackoff)
	dispatchDone          statekit.StateID = statekit.StateID(dispatch.StatusDone)
	dispatchFailed        statekit.StateID = statekit.StateID(dispatch.StatusFailed)
	dispatchCancelled     statekit.StateID = statekit.StateID(dispatch.StatusCancelled)
	dispatchTimedOut      statekit.StateID = statekit.StateID(dispatch.StatusTimedOut)
)

// Dispatch events.
const (
	EventReady    statekit.EventType = "READY"
	EventDispatch statekit.EventType = "DISPATCH"
	EventSucceed  statekit.EventType = "SUCCEED"
	EventRetry    statekit.EventType = "RETRY"
	EventExhaust  statekit.EventType = "EXHAUST"
	EventCancel   statekit.EventType = "CANCEL"
	EventExpire   statekit.EventType = "EXPIRE"
)

// NewDispatchMachine builds the Dispatch Queue's statechart, matching
// the Status transitions the queue's scheduling loop drives a dispatch
// through (spec §4.1).
func NewDispatchMachine() (*statekit.MachineConfig[*DispatchContext], error) {
	return statekit.NewMachine[*DispatchContext]("dispatch").
		WithInitial(dispatchQueuedWaiting).
		WithContext(&DispatchContext{}).
		WithAction("recordReason", recordDispatchReason).
		WithGuard("notCancelPending", guardDispatchNotCancelPending).
		State(dispatchQueuedWaiting).
			On("READY").Target(dispatchQueuedReady).Do("recordReason").
			On("CANCEL").Target(dispatchCancelled).Do("recordReason").
			On("EXPIRE").Target(dispatchTimedOut).Do("recordReason").
			Done().
		State(dispatchQueuedReady).
			On("DISPATCH").Target(dispatchInFlight).Guard("notCancelPending").Do("recordReason").
			On("CANCEL").Target(dispatchCancelled).Do("recordReason").
			On("EXPIRE").Target(dispatchTimedOut).Do("recordReason").
			Done().
		State(dispatchInFlight).
			On("SUCCEED").Target(dispatchDone).Do("recordReason").
			On("RETRY").Target(dispatchBackoff).Do("recordReason").
			On("EXHAUST").Target(dispatchFailed).Do("recordReason").
			On("CANCEL").Target(dispatchCancelled).Do("recordReason").
			On("EXPIRE").Target(dispatchTimedOut).Do("recordReason").
			Done().
		State(dispatchBackoff).
			On("READY").Target(dispatchQueuedReady).Do("recordReason").
			On("CANCEL").Target(dispatchCancelled).Do("recordReason").
			On("EXPIRE").Target(dispatchTimedOut).Do("recordReason").
			Done().
		State(dispatchDone).
			Final().
			Done().
		State(dispatchFailed).
			Final().
			Done().
		State(dispatchCancelled).
			Final().
			Done().
		State(dispatchTimedOut).
			Final().
			Done().
		Build()
}

// WorkerContext carries a Worker through its statekit machine.
type WorkerContext struct {
	Worker *worker.Worker
	Reason string
}

// Worker state IDs, mirrored from domain/worker.State.
const (
	workerSpawning statekit.StateID = statekit.StateID(worker.StateSpawning)
	workerIdle     statekit.StateID = statekit.StateID(worker.StateIdle)
	workerBusy     statekit.StateID = statekit.StateID(worker.StateBusy)
	workerDraining statekit.StateID = statekit.StateID(worker.StateDraining)
	workerDead     statekit.StateID = statekit.StateID(worker.StateDead)
)

// Worker events.
const (
	EventSpawned  statekit.EventType = "SPAWNED"
	EventAssign   statekit.EventType = "ASSIGN"
	EventRelease  statekit.EventType = "RELEASE"
	EventDrain    statekit.EventType = "DRAIN"
	EventTerminate statekit.EventType = "TERMINATE"
)

// NewWorkerMachine builds the Worker Pool's statechart, matching the
// State transitions a managed worker moves through (spec §4.2).
func NewWorkerMachine() (*statekit.MachineConfig[*WorkerContext], error) {
	return statekit.NewMachine[*WorkerContext]("worker").
		WithInitial(workerSpawning).
		WithContext(&WorkerContext{}).
		WithAction("recordReason", recordWorkerReason).
		State(workerSpawning).
			On("SPAWNED").Target(workerIdle).Do("recordReason").
			On("TERMINATE").Target(workerDead).Do("recordReason").
			Done().
		State(workerIdle).
			On("ASSIGN").Target(workerBusy).Do("recordReason").
			On("DRAIN").Target(workerDraining).Do("recordReason").
			On("TERMINATE").Target(workerDead).Do("recordReason").
			Done().
		State(workerBusy).
			On("RELEASE").Target(workerIdle).Do("recordReason").
			On("TERMINATE").Target(workerDead).Do("recordReason").
			Done().
		State(workerDraining).
			On("TERMINATE").Target(workerDead).Do("recordReason").
			Done().
		State(workerDead).
			Final().
			Done().
		Build()
}
