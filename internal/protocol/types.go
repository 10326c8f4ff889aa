// Package protocol implements the bidirectional JSON stdio transport and
// the four tool endpoints (spec.md §4.7, §6).
package protocol

import "encoding/json"

// Request is the generic wire envelope for an incoming tool call.
type Request struct {
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params"`
}

// ValidateParams is the payload for the "validate" tool.
type ValidateParams struct {
	SpecText string `json:"spec_text"`
}

// PlanParams is the payload for the "plan" tool.
type PlanParams struct {
	SpecText string         `json:"spec_text"`
	FlowName string         `json:"flow_name"`
	Inputs   map[string]any `json:"inputs"`
}

// StepDoneParams is the payload for the "step_done" tool.
type StepDoneParams struct {
	FlowID string         `json:"flow_id"`
	StepID string         `json:"step_id"`
	Result map[string]any `json:"result"`
}

// AuditParams is the payload for the "audit" tool.
type AuditParams struct {
	FlowID string `json:"flow_id"`
}

// ErrorEnvelope is the uniform wire shape for every error response
// (spec.md §6). Internal errors never populate Path or Suggestion with
// anything beyond the generic message — no stack traces, no internal
// paths, no library names.
type ErrorEnvelope struct {
	Success    bool   `json:"success"`
	ErrorType  string `json:"error_type"`
	Path       string `json:"path,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidateResponse is the "validate" tool's response shape.
type ValidateResponse struct {
	Valid  bool            `json:"valid"`
	Errors []ErrorEnvelope `json:"errors,omitempty"`
}

// DispatchResponse is the wire shape of a StepDispatch envelope
// (spec.md §4.7).
type DispatchResponse struct {
	Status           string            `json:"status"`
	FlowID           string            `json:"flow_id"`
	StepID           string            `json:"step_id"`
	Function         string            `json:"function"`
	Intent           string            `json:"intent"`
	Inputs           map[string]any    `json:"inputs"`
	OutputContract   string            `json:"output_contract"`
	OutputFields     map[string]string `json:"output_fields"`
	Ensure           []string          `json:"ensure"`
	RetriesRemaining int               `json:"retries_remaining"`
}

// CompleteResponse is the terminal "complete" response.
type CompleteResponse struct {
	Status string       `json:"status"`
	FlowID string       `json:"flow_id"`
	Output any          `json:"output"`
	Trace  []TraceEntry `json:"trace"`
}

// EnsureFailedResponse is the "ensure_failed" protocol response — part of
// the normal protocol, never mixed into the error envelope.
type EnsureFailedResponse struct {
	Status           string   `json:"status"`
	FlowID           string   `json:"flow_id"`
	StepID           string   `json:"step_id"`
	Violations       []string `json:"violations"`
	RetriesRemaining int      `json:"retries_remaining"`
}

// FailedResponse is the terminal "failed" response.
type FailedResponse struct {
	Status     string   `json:"status"`
	FlowID     string   `json:"flow_id"`
	StepID     string   `json:"step_id"`
	Violations []string `json:"violations"`
	Final      bool     `json:"final"`
}

// TraceEntry is the wire shape of one audit step record.
type TraceEntry struct {
	StepID       string `json:"step_id"`
	Function     string `json:"function"`
	Attempts     int    `json:"attempts"`
	DispatchedAt string `json:"dispatched_at"`
	CompletedAt  string `json:"completed_at"`
	Outcome      string `json:"outcome"`
}

// AuditResponse is the "audit" tool's response shape.
type AuditResponse struct {
	Status string       `json:"status"`
	FlowID string       `json:"flow_id"`
	Trace  []TraceEntry `json:"trace"`
}
