// Package protocol defines the wire envelope exchanged between the
// supervisor and isolated workers.
package protocol

import (
	"encoding/json"
	"time"
)

// Version is the protocol version this package implements.
const Version = "1.0"

// MessageType discriminates the payload carried by an Envelope.
type MessageType string

// Message types exchanged over the worker wire protocol.
const (
	MessageDispatchCode   MessageType = "dispatch:code"
	MessageDispatchWasm   MessageType = "dispatch:wasm"
	MessageDispatchBundle MessageType = "dispatch:bundle"
	MessageExecute        MessageType = "execute"
	MessageResult         MessageType = "result"
	MessageProgress       MessageType = "progress"
	MessageError          MessageType = "error"
	MessageComplete       MessageType = "complete"
	MessageCancel         MessageType = "cancel"
	MessageCleanup        MessageType = "cleanup"
	MessageHeartbeat      MessageType = "heartbeat"
	MessageHeartbeatReply MessageType = "heartbeat-response"
)

func (t MessageType) valid() bool {
	switch t {
	case MessageDispatchCode, MessageDispatchWasm, MessageDispatchBundle,
		MessageExecute, MessageResult, MessageProgress, MessageError,
		MessageComplete, MessageCancel, MessageCleanup,
		MessageHeartbeat, MessageHeartbeatReply:
		return true
	}
	return false
}

// TargetType names the kind of execution target a dispatch is routed to.
type TargetType string

// Target types a dispatch may be routed to.
const (
	TargetWorker       TargetType = "worker"
	TargetSharedWorker TargetType = "shared-worker"
	TargetWasmModule   TargetType = "wasm-module"
	TargetRemoteEdge   TargetType = "remote-edge"
	TargetGPUCompute   TargetType = "gpu-compute"
)

func (t TargetType) valid() bool {
	switch t {
	case TargetWorker, TargetSharedWorker, TargetWasmModule, TargetRemoteEdge, TargetGPUCompute:
		return true
	}
	return false
}

// Priority orders dispatches; lower numeric value runs first.
type Priority int

// Priority levels per the wire protocol.
const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 1
	PriorityNormal   Priority = 2
	PriorityLow      Priority = 3
)

func (p Priority) valid() bool {
	return p >= PriorityCritical && p <= PriorityLow
}

// Envelope is the fixed-shape message exchanged over the worker channel.
type Envelope struct {
	ProtocolVersion string          `json:"version"`
	Type            MessageType     `json:"type"`
	RequestID       string          `json:"requestId"`
	Target          TargetType      `json:"targetType"`
	Priority        Priority        `json:"priority"`
	TimestampMS     int64           `json:"timestamp"`
	TimeoutMS       int             `json:"timeout"`
	Payload         json.RawMessage `json:"payload"`
	Transfer        []string        `json:"transfer,omitempty"`
}

// New builds an envelope with the current monotonic-ish wall clock
// timestamp in milliseconds.
func New(typ MessageType, requestID string, target TargetType, priority Priority, timeout time.Duration, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ProtocolVersion: Version,
		Type:            typ,
		RequestID:       requestID,
		Target:          target,
		Priority:        priority,
		TimestampMS:     time.Now().UnixMilli(),
		TimeoutMS:       int(timeout.Milliseconds()),
		Payload:         raw,
	}, nil
}

// Validate enforces the field rules from the wire protocol spec: every
// field must be present and typed correctly, requestId non-empty, timeout
// positive, and the enums must be known values.
func (e Envelope) Validate() error {
	if e.ProtocolVersion == "" {
		return fieldErr("version", ErrMissingField)
	}
	if !e.Type.valid() {
		return fieldErr("type", ErrInvalidEnum)
	}
	if e.RequestID == "" {
		return fieldErr("requestId", ErrMissingField)
	}
	if !e.Target.valid() {
		return fieldErr("targetType", ErrInvalidEnum)
	}
	if !e.Priority.valid() {
		return fieldErr("priority", ErrInvalidEnum)
	}
	if e.TimestampMS <= 0 {
		return fieldErr("timestamp", ErrMissingField)
	}
	if e.TimeoutMS <= 0 {
		return fieldErr("timeout", ErrInvalidValue)
	}
	if len(e.Payload) == 0 {
		return fieldErr("payload", ErrMissingField)
	}
	return nil
}

// UnmarshalPayload decodes the envelope's payload into v.
func (e Envelope) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Deadline returns the absolute deadline the envelope's timeout implies,
// measured from its own timestamp.
func (e Envelope) Deadline() time.Time {
	return time.UnixMilli(e.TimestampMS).Add(time.Duration(e.TimeoutMS) * time.Millisecond)
}
