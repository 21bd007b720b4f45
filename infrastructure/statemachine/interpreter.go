package statemachine

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/dispatchkit/fleet/domain/dispatch"
	"github.com/dispatchkit/fleet/domain/worker"
)

// DispatchInterpreter drives one Dispatch through its statekit machine,
// validating every status change the Queue wants to make.
type DispatchInterpreter struct {
	interp *statekit.Interpreter[*DispatchContext]
	ctx    *DispatchContext
}

// NewDispatchInterpreter starts an interpreter pinned to d's current
// status.
func NewDispatchInterpreter(machine *statekit.MachineConfig[*DispatchContext], d *dispatch.Dispatch) (*DispatchInterpreter, error) {
	ctx := &DispatchContext{Dispatch: d}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **DispatchContext) { *c = ctx })
	interp.Start()

	di := &DispatchInterpreter{interp: interp, ctx: ctx}
	if statekit.StateID(d.Status) != di.interp.State().Value {
		if err := di.Restore(d.Status); err != nil {
			return nil, err
		}
	}
	return di, nil
}

// Restore repositions the interpreter at the given status without
// firing transition actions, used when adopting a dispatch that is
// already mid-lifecycle.
func (di *DispatchInterpreter) Restore(status dispatch.Status) error {
	snapshot := statekit.Snapshot[*DispatchContext]{
		MachineID:    "dispatch",
		CurrentState: statekit.StateID(status),
		Context:      di.ctx,
	}
	return di.interp.Restore(snapshot)
}

// State returns the interpreter's current dispatch status.
func (di *DispatchInterpreter) State() dispatch.Status {
	return dispatch.Status(di.interp.State().Value)
}

// Fire attempts the named event, returning an error if the current
// state has no matching transition or its guard rejects it.
func (di *DispatchInterpreter) Fire(event statekit.EventType, reason string) error {
	before := di.interp.State().Value
	di.interp.Send(statekit.Event{Type: event, Payload: reason})
	if di.interp.State().Value == before {
		return fmt.Errorf("statemachine: dispatch %s has no valid %s transition from %s", di.ctx.Dispatch.ID, event, before)
	}
	return nil
}

// WorkerInterpreter drives one Worker through its statekit machine.
type WorkerInterpreter struct {
	interp *statekit.Interpreter[*WorkerContext]
	ctx    *WorkerContext
}

// NewWorkerInterpreter starts an interpreter pinned to w's current state.
func NewWorkerInterpreter(machine *statekit.MachineConfig[*WorkerContext], w *worker.Worker) (*WorkerInterpreter, error) {
	ctx := &WorkerContext{Worker: w}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **WorkerContext) { *c = ctx })
	interp.Start()

	wi := &WorkerInterpreter{interp: interp, ctx: ctx}
	if statekit.StateID(w.State) != wi.interp.State().Value {
		snapshot := statekit.Snapshot[*WorkerContext]{
			MachineID:    "worker",
			CurrentState: statekit.StateID(w.State),
			Context:      ctx,
		}
		if err := wi.interp.Restore(snapshot); err != nil {
			return nil, err
		}
	}
	return wi, nil
}

// State returns the interpreter's current worker state.
func (wi *WorkerInterpreter) State() worker.State {
	return worker.State(wi.interp.State().Value)
}

// Fire attempts the named event, returning an error if the current
// state has no matching transition.
func (wi *WorkerInterpreter) Fire(event statekit.EventType, reason string) error {
	before := wi.interp.State().Value
	wi.interp.Send(statekit.Event{Type: event, Payload: reason})
	if wi.interp.State().Value == before {
		return fmt.Errorf("statemachine: worker %s has no valid %s transition from %s", wi.ctx.Worker.ID, event, before)
	}
	return nil
}
