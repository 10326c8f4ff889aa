package flow

import (
	"sync"

	"github.com/google/uuid"

	"stratum/internal/ir"
)

// Registry owns the set of live flow states for the process lifetime
// (spec.md §3, §5). It is a sync.Map keyed by flow id, the same
// per-key-locking shape wave's worktree package uses for per-repository
// locks: each entry owns its own mutex (State.mu), so the registry
// itself never needs a global lock beyond what sync.Map already
// provides for the map structure.
type Registry struct {
	flows sync.Map // map[string]*State
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Create allocates a new flow state with a fresh opaque id and registers
// it. order must already be the scheduler's topologically sorted step
// list — the registry never computes or recomputes it.
func (r *Registry) Create(spec *ir.Spec, flowName string, order []ir.StepDef, flowInputs map[string]any) *State {
	id := uuid.NewString()
	state := newState(id, spec, flowName, order, flowInputs)
	r.flows.Store(id, state)
	return state
}

// Get looks up a flow state by id.
func (r *Registry) Get(id string) (*State, bool) {
	v, ok := r.flows.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*State), true
}

// Delete removes a flow state. Used to roll back a Create when planning
// fails after the state has already been registered — no flow state
// should remain when Plan returns an error (spec.md §7).
func (r *Registry) Delete(id string) {
	r.flows.Delete(id)
}

// ExecutionErr reports a plan or dispatch failure: an unknown flow name,
// or a step whose function or output contract cannot be found (spec.md
// §7). Cycles and unknown flow ids have their own types (CycleErr,
// UnknownFlowErr). It is never raised for postcondition failures — those
// are the ensure_failed protocol response, not an error.
type ExecutionErr struct {
	Message string
}

func (e *ExecutionErr) Error() string { return "execution error: " + e.Message }

// UnknownFlowErr is raised when step_done or audit names a flow id the
// registry never created. The server never creates a flow implicitly.
type UnknownFlowErr struct {
	FlowID string
}

func (e *UnknownFlowErr) Error() string {
	return "execution error: unknown flow id " + e.FlowID
}
