package dispatch

import (
	"encoding/json"
	"time"
)

// Result is what a worker produced for a Dispatch.
type Result struct {
	DispatchID string          `json:"dispatchId"`
	TargetID   string          `json:"targetId,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	IsFinal    bool            `json:"isFinal"`
	ProducedAt time.Time       `json:"producedAt"`
	ExecTimeMS int64           `json:"execTimeMs,omitempty"`
	MemoryUsed int64           `json:"memoryUsed,omitempty"`
}
