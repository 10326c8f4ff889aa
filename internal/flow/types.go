// Package flow implements the per-flow state machine: spec.md §3, §4.5,
// §4.6. A State is authoritative runtime state for one in-progress (or
// terminated) flow; a Registry owns the set of live flows.
package flow

import (
	"sync"
	"time"

	"stratum/internal/ir"
)

// CursorState is the coarse-grained lifecycle phase of a flow.
type CursorState string

const (
	Dispatching   CursorState = "dispatching"
	AwaitingResult CursorState = "awaiting_result"
	Completed     CursorState = "completed"
	Failed        CursorState = "failed"
)

// Outcome is the terminal classification of one step record.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeRetryExhausted Outcome = "retry_exhausted"
	OutcomeDispatchFailed Outcome = "dispatch_failed"
)

// StepRecord is an append-only audit entry. Once appended it is never
// rewritten (spec.md §3).
type StepRecord struct {
	StepID       string
	FunctionName string
	Attempts     int
	DispatchedAt time.Time
	CompletedAt  time.Time
	Outcome      Outcome
}

// State is the authoritative runtime record for one flow (spec.md §3).
// Mutable fields are guarded by mu: the single-threaded protocol loop
// mutates them during step_done/plan turns, and Audit takes only the
// read lock.
type State struct {
	mu sync.RWMutex

	ID       string
	Spec     *ir.Spec
	FlowName string

	order []ir.StepDef // fixed at plan time, never recomputed

	cursor      int
	cursorState CursorState

	outputs      map[string]map[string]any
	attempts     map[string]int
	dispatchedAt map[string]time.Time // stamped once, when a step's envelope is first built
	records      []StepRecord

	currentStepID string // step awaiting a result, "" if none

	flowInputs map[string]any

	// ensures holds every referenced function's compiled postconditions,
	// built once by Plan before any step dispatches.
	ensures ensureCache
}

func newState(id string, spec *ir.Spec, flowName string, order []ir.StepDef, flowInputs map[string]any) *State {
	return &State{
		ID:           id,
		Spec:         spec,
		FlowName:     flowName,
		order:        order,
		cursorState:  Dispatching,
		outputs:      make(map[string]map[string]any),
		attempts:     make(map[string]int),
		dispatchedAt: make(map[string]time.Time),
		flowInputs:   flowInputs,
	}
}

// CursorState returns the current lifecycle phase.
func (s *State) CursorState() CursorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursorState
}

// Audit returns a copy of the ordered step records. Read-only; never
// mutates state (spec.md §8 idempotence property).
func (s *State) Audit() []StepRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StepRecord, len(s.records))
	copy(out, s.records)
	return out
}

// FlowDef resolves this state's flow definition from its owning spec.
func (s *State) FlowDef() *ir.FlowDef {
	f, _ := s.Spec.Flow(s.FlowName)
	return f
}
