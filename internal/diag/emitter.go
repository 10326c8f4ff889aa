// Package diag emits structured NDJSON diagnostics to stderr, kept
// strictly separate from the stdout wire protocol (spec.md §6, §9). It
// is grounded on wave's internal/event.NDJSONEmitter, trimmed to the
// controller's own lifecycle: flow creation, step dispatch, retries,
// and terminal outcomes.
package diag

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Event is one diagnostic record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	FlowID    string    `json:"flow_id,omitempty"`
	StepID    string    `json:"step_id,omitempty"`
	State     string    `json:"state"`
	Message   string    `json:"message,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
}

// Lifecycle states an Emitter can record.
const (
	StateFlowCreated  = "flow_created"
	StateDispatched   = "step_dispatched"
	StateEnsureFailed = "ensure_failed"
	StateRetrying     = "retrying"
	StateCompleted    = "completed"
	StateFailed       = "failed"
	StateProtocolErr  = "protocol_error"
	StateInternalErr  = "internal_error"
)

// Emitter writes one JSON object per line to an underlying writer,
// normally os.Stderr. Safe for concurrent use.
type Emitter struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewStderrEmitter builds an Emitter writing to os.Stderr.
func NewStderrEmitter() *Emitter {
	return NewEmitter(os.Stderr)
}

// NewEmitter builds an Emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{encoder: json.NewEncoder(w)}
}

// Emit records ev, stamping Timestamp if the caller left it zero.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	_ = e.encoder.Encode(ev)
}
