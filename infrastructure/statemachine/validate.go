package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/dispatchkit/fleet/domain/dispatch"
	"github.com/dispatchkit/fleet/domain/worker"
)

var dispatchEventFor = map[dispatch.Status]statekit.EventType{
	dispatch.StatusQueuedReady: EventReady,
	dispatch.StatusInFlight:    EventDispatch,
	dispatch.StatusDone:        EventSucceed,
	dispatch.StatusBackoff:     EventRetry,
	dispatch.StatusFailed:      EventExhaust,
	dispatch.StatusCancelled:   EventCancel,
	dispatch.StatusTimedOut:    EventExpire,
}

// DispatchTransitionAllowed reports whether the dispatch machine permits
// moving from one status to another, consulting the same statechart the
// Queue's scheduling loop is modeled on.
func DispatchTransitionAllowed(from, to dispatch.Status) bool {
	if from == to {
		return true
	}
	event, ok := dispatchEventFor[to]
	if !ok {
		return false
	}

	machine, err := NewDispatchMachine()
	if err != nil {
		return false
	}
	di, err := NewDispatchInterpreter(machine, &dispatch.Dispatch{Status: from})
	if err != nil {
		return false
	}
	if err := di.Fire(event, ""); err != nil {
		return false
	}
	return di.State() == to
}

type workerTransition struct {
	from, to worker.State
}

var workerEventFor = map[workerTransition]statekit.EventType{
	{worker.StateSpawning, worker.StateIdle}: EventSpawned,
	{worker.StateIdle, worker.StateBusy}:     EventAssign,
	{worker.StateBusy, worker.StateIdle}:     EventRelease,
	{worker.StateIdle, worker.StateDraining}: EventDrain,
	{worker.StateSpawning, worker.StateDead}: EventTerminate,
	{worker.StateIdle, worker.StateDead}:     EventTerminate,
	{worker.StateBusy, worker.StateDead}:     EventTerminate,
	{worker.StateDraining, worker.StateDead}: EventTerminate,
}

// WorkerTransitionAllowed reports whether the worker machine permits
// moving from one state to another.
func WorkerTransitionAllowed(from, to worker.State) bool {
	if from == to {
		return true
	}
	event, ok := workerEventFor[workerTransition{from, to}]
	if !ok {
		return false
	}

	machine, err := NewWorkerMachine()
	if err != nil {
		return false
	}
	wi, err := NewWorkerInterpreter(machine, &worker.Worker{State: from})
	if err != nil {
		return false
	}
	if err := wi.Fire(event, ""); err != nil {
		return false
	}
	return wi.State() == to
}
