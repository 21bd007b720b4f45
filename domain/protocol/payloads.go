package protocol

import "encoding/json"

// DispatchCodePayload is carried by a dispatch:code envelope.
type DispatchCodePayload struct {
	Code         string          `json:"code"`
	CodeHash     string          `json:"codeHash"`
	Context      json.RawMessage `json:"context,omitempty"`
	Dependencies []string        `json:"dependencies,omitempty"`
}

// DispatchWasmPayload is carried by a dispatch:wasm envelope.
type DispatchWasmPayload struct {
	Binary     []byte          `json:"binary"`
	Hash       string          `json:"hash"`
	EntryPoint string          `json:"entryPoint"`
	Imports    []string        `json:"imports,omitempty"`
	Memory     int             `json:"memory,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
}

// BundleModule is one module within a dispatch:bundle manifest.
type BundleModule struct {
	ID     string `json:"id"`
	Binary []byte `json:"binary"`
}

// DispatchBundlePayload is carried by a dispatch:bundle envelope.
type DispatchBundlePayload struct {
	Manifest   json.RawMessage `json:"manifest"`
	Modules    []BundleModule  `json:"modules"`
	EntryPoint string          `json:"entryPoint"`
	Context    json.RawMessage `json:"context,omitempty"`
}

// ExecutePayload is carried by an execute envelope.
type ExecutePayload struct {
	Args json.RawMessage `json:"args,omitempty"`
}

// ResultMetadata carries execution accounting for a result payload.
type ResultMetadata struct {
	ExecutionTimeMS int64 `json:"executionTime"`
	MemoryUsed      int64 `json:"memoryUsed"`
}

// ResultPayload is carried by a result envelope.
type ResultPayload struct {
	Value    json.RawMessage `json:"value"`
	Metadata ResultMetadata  `json:"metadata,omitempty"`
}

// ProgressPayload is carried by a progress envelope.
type ProgressPayload struct {
	Progress float64 `json:"progress"`
	Status   string  `json:"status,omitempty"`
}

// ErrorPayload is carried by an error envelope.
type ErrorPayload struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	Name    string `json:"name,omitempty"`
}

// CompletePayload is carried by a complete envelope.
type CompletePayload struct {
	Summary json.RawMessage `json:"summary,omitempty"`
}

// CancelPayload is carried by a cancel envelope.
type CancelPayload struct {
	Reason string `json:"reason"`
}

// CleanupPayload is carried by a cleanup envelope.
type CleanupPayload struct {
	Resources []string `json:"resources,omitempty"`
}

// HeartbeatPayload is carried by heartbeat and heartbeat-response envelopes.
type HeartbeatPayload struct {
	HeartbeatID int64  `json:"heartbeatId"`
	TimestampMS int64  `json:"timestamp"`
	WorkerID    string `json:"workerId"`
}
