// Package fakeworker provides the one concrete pool.WorkerProc exercised
// by tests and the CLI's local-demo mode: an in-process goroutine that
// speaks the exact wire envelope of domain/protocol and evaluates a tiny
// arithmetic JSON program in place of a real isolated execution backend.
// Production deployments supply their own pool.WorkerProc instead.
package fakeworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dispatchkit/fleet/domain/protocol"
)

// Worker is an in-process stand-in for an isolated worker. Heartbeats
// are answered on a dedicated goroutine so they never queue behind an
// in-flight dispatch, matching the "disjoint message types" requirement.
type Worker struct {
	id string

	inbox chan protocol.Envelope
	out   chan protocol.Envelope
	done  chan struct{}
}

// New creates a Worker, satisfying pool.WorkerProcFactory's signature.
func New(id string) (*Worker, error) {
	w := &Worker{
		id:    id,
		inbox: make(chan protocol.Envelope, 8),
		out:   make(chan protocol.Envelope, 8),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Send delivers an envelope for processing.
func (w *Worker) Send(ctx context.Context, env protocol.Envelope) error {
	select {
	case w.inbox <- env:
		return nil
	case <-w.done:
		return errors.New("fakeworker: terminated")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv blocks for the worker's next outgoing envelope.
func (w *Worker) Recv(ctx context.Context) (protocol.Envelope, error) {
	select {
	case env := <-w.out:
		return env, nil
	case <-w.done:
		return protocol.Envelope{}, errors.New("fakeworker: terminated")
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

// Terminate stops the worker's processing loop.
func (w *Worker) Terminate() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return nil
}

func (w *Worker) loop() {
	for {
		select {
		case <-w.done:
			return
		case env := <-w.inbox:
			if env.Type == protocol.MessageHeartbeat {
				go w.replyHeartbeat(env)
				continue
			}
			go w.handleDispatch(env)
		}
	}
}

func (w *Worker) replyHeartbeat(env protocol.Envelope) {
	var hb protocol.HeartbeatPayload
	_ = env.UnmarshalPayload(&hb)

	reply, err := protocol.New(protocol.MessageHeartbeatReply, env.RequestID, env.Target, env.Priority, time.Second, protocol.HeartbeatPayload{
		HeartbeatID: hb.HeartbeatID,
		TimestampMS: time.Now().UnixMilli(),
		WorkerID:    w.id,
	})
	if err != nil {
		return
	}
	w.emit(reply)
}

func (w *Worker) handleDispatch(env protocol.Envelope) {
	var code protocol.DispatchCodePayload
	if err := env.UnmarshalPayload(&code); err != nil {
		w.emitError(env, err)
		return
	}

	start := time.Now()
	value, err := evaluate(code.Code)
	if err != nil {
		w.emitError(env, err)
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		w.emitError(env, err)
		return
	}

	reply, err := protocol.New(protocol.MessageResult, env.RequestID, env.Target, env.Priority, time.Second, protocol.ResultPayload{
		Value: raw,
		Metadata: protocol.ResultMetadata{
			ExecutionTimeMS: time.Since(start).Milliseconds(),
		},
	})
	if err != nil {
		return
	}
	w.emit(reply)
}

func (w *Worker) emitError(env protocol.Envelope, cause error) {
	reply, err := protocol.New(protocol.MessageError, env.RequestID, env.Target, env.Priority, time.Second, protocol.ErrorPayload{
		Message: cause.Error(),
		Name:    "EvaluationError",
	})
	if err != nil {
		return
	}
	w.emit(reply)
}

func (w *Worker) emit(env protocol.Envelope) {
	select {
	case w.out <- env:
	case <-w.done:
	}
}

// expr is the tiny arithmetic program format a fake worker evaluates:
// a number literal, or {"op": "add"|"sub"|"mul"|"div", "args": [expr...]}.
type expr struct {
	Op   string `json:"op"`
	Args []expr `json:"args"`
	Num  *float64
}

func (e *expr) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		e.Num = &num
		return nil
	}
	type alias expr
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = expr(a)
	return nil
}

func evaluate(code string) (float64, error) {
	var e expr
	if err := json.Unmarshal([]byte(code), &e); err != nil {
		return 0, fmt.Errorf("fakeworker: invalid program: %w", err)
	}
	return e.eval()
}

func (e expr) eval() (float64, error) {
	if e.Num != nil {
		return *e.Num, nil
	}
	if len(e.Args) == 0 {
		return 0, errors.New("fakeworker: operator requires at least one argument")
	}
	values := make([]float64, len(e.Args))
	for i, a := range e.Args {
		v, err := a.eval()
		if err != nil {
			return 0, err
		}
		values[i] = v
	}
	switch e.Op {
	case "add":
		total := 0.0
		for _, v := range values {
			total += v
		}
		return total, nil
	case "sub":
		total := values[0]
		for _, v := range values[1:] {
			total -= v
		}
		return total, nil
	case "mul":
		total := 1.0
		for _, v := range values {
			total *= v
		}
		return total, nil
	case "div":
		total := values[0]
		for _, v := range values[1:] {
			if v == 0 {
				return 0, errors.New("fakeworker: division by zero")
			}
			total /= v
		}
		return total, nil
	default:
		return 0, fmt.Errorf("fakeworker: unknown operator %q", e.Op)
	}
}
