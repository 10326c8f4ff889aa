package flow

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stratum/internal/ir"
	"stratum/internal/resolver"
	"stratum/internal/sandbox"
	"stratum/internal/scheduler"
)

// StepDispatch is the data behind an "execute_step" response (spec.md
// §4.7 dispatch envelope). The protocol front-end copies it field for
// field into its wire type before marshalling.
type StepDispatch struct {
	FlowID           string
	StepID           string
	Function         string
	Intent           string
	Inputs           map[string]any
	OutputContract   string
	OutputFields     ir.FieldMap
	Ensure           []string
	RetriesRemaining int
}

// Complete is the terminal "complete" response.
type Complete struct {
	FlowID string
	Output any
	Trace  []StepRecord
}

// EnsureFailed is the non-error "ensure_failed" response — part of the
// normal protocol, not the error envelope (spec.md §4.5, §9).
type EnsureFailed struct {
	FlowID           string
	StepID           string
	Violations       []string
	RetriesRemaining int
}

// FailedResult is the terminal "failed" response.
type FailedResult struct {
	FlowID     string
	StepID     string
	Violations []string
}

// ProtocolErr reports a step_done call whose step id does not match the
// currently dispatched step, or that arrives while the flow is not
// awaiting a result.
type ProtocolErr struct {
	Message string
}

func (e *ProtocolErr) Error() string { return "protocol error: " + e.Message }

type compiledPredicate struct {
	expr string
	fn   sandbox.Predicate
}

// ensureCache holds compiled postconditions per function, built once at
// plan time and held for the state's lifetime. Compiling all of a
// flow's ensure expressions before any step dispatches means a sandbox
// escape attempt (spec.md §8 scenario 5) fails the plan outright.
type ensureCache map[string][]compiledPredicate

// Plan executes the plan transition (spec.md §4.5): order the flow's
// steps, compile every referenced function's postconditions, create the
// flow state, and return either the first dispatch envelope or an
// immediate Complete for a zero-step flow.
func Plan(registry *Registry, spec *ir.Spec, flowName string, flowInputs map[string]any) (*State, *StepDispatch, *Complete, error) {
	flowDef, ok := spec.Flow(flowName)
	if !ok {
		return nil, nil, nil, &ExecutionErr{Message: fmt.Sprintf("unknown flow %q", flowName)}
	}

	order, err := scheduler.Order(flowDef)
	if err != nil {
		return nil, nil, nil, err
	}

	cache, err := compileEnsures(spec, order)
	if err != nil {
		return nil, nil, nil, err
	}

	state := registry.Create(spec, flowName, order, flowInputs)
	state.ensures = cache

	if len(order) == 0 {
		state.mu.Lock()
		state.cursorState = Completed
		state.mu.Unlock()
		return state, nil, &Complete{FlowID: state.ID, Output: nil, Trace: nil}, nil
	}

	envelope, err := dispatchEnvelope(state, 0)
	if err != nil {
		registry.Delete(state.ID)
		return nil, nil, nil, err
	}
	state.mu.Lock()
	state.currentStepID = envelope.StepID
	state.cursorState = AwaitingResult
	state.mu.Unlock()
	return state, envelope, nil, nil
}

// compileEnsures compiles every distinct function referenced by order's
// postconditions before any step dispatches, so a sandbox escape attempt
// anywhere in the flow fails the plan outright rather than surfacing
// mid-run. Each function's ensure list is independent of every other's,
// so they compile concurrently in an errgroup — the same shape wave's
// concurrency executor uses for independent work. Wait returns the first
// compile error once every goroutine has finished; nothing is cancelled.
func compileEnsures(spec *ir.Spec, order []ir.StepDef) (ensureCache, error) {
	functionNames := make([]string, 0, len(order))
	seen := make(map[string]bool)
	for _, step := range order {
		if seen[step.Function] {
			continue
		}
		seen[step.Function] = true
		if _, ok := spec.Function(step.Function); !ok {
			return nil, &ExecutionErr{Message: fmt.Sprintf("step %q references undefined function %q", step.ID, step.Function)}
		}
		functionNames = append(functionNames, step.Function)
	}

	var (
		mu    sync.Mutex
		cache = make(ensureCache, len(functionNames))
	)
	g := new(errgroup.Group)
	for _, name := range functionNames {
		name := name
		g.Go(func() error {
			fn, _ := spec.Function(name)
			preds := make([]compiledPredicate, 0, len(fn.Ensure))
			for _, expr := range fn.Ensure {
				predFn, err := sandbox.CompileEnsure(expr)
				if err != nil {
					return err
				}
				preds = append(preds, compiledPredicate{expr: expr, fn: predFn})
			}
			mu.Lock()
			cache[name] = preds
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cache, nil
}

// dispatchEnvelope builds the envelope for state.order[idx], resolving
// its input bindings against the state as it exists right now (spec.md
// §4.3: resolution never happens at plan time for later steps). It
// stamps the step's first-dispatch wall time; a retried step keeps the
// time of its original dispatch, since dispatchEnvelope runs once per
// step, not once per attempt.
func dispatchEnvelope(state *State, idx int) (*StepDispatch, error) {
	step := state.order[idx]
	fn, ok := state.Spec.Function(step.Function)
	if !ok {
		return nil, &ExecutionErr{Message: fmt.Sprintf("step %q references undefined function %q", step.ID, step.Function)}
	}
	contract, ok := state.Spec.Contract(fn.Output)
	if !ok {
		return nil, &ExecutionErr{Message: fmt.Sprintf("function %q references undefined contract %q", fn.Name, fn.Output)}
	}

	resolvedInputs := make(map[string]any, len(step.Inputs))
	for _, name := range step.InputOrder {
		ref := step.Inputs[name]
		value, err := resolver.Resolve(ref, state.flowInputs, state.outputs)
		if err != nil {
			return nil, err
		}
		resolvedInputs[name] = value
	}

	state.mu.Lock()
	attempt := state.attempts[step.ID]
	if _, stamped := state.dispatchedAt[step.ID]; !stamped {
		state.dispatchedAt[step.ID] = time.Now()
	}
	state.mu.Unlock()

	return &StepDispatch{
		FlowID:           state.ID,
		StepID:           step.ID,
		Function:         fn.Name,
		Intent:           fn.Intent,
		Inputs:           resolvedInputs,
		OutputContract:   contract.Name,
		OutputFields:     contract.Fields,
		Ensure:           fn.Ensure,
		RetriesRemaining: (fn.Retries + 1) - attempt,
	}, nil
}

// StepDone executes the step_done transition (spec.md §4.5, §4.6).
func StepDone(state *State, stepID string, result map[string]any) (*StepDispatch, *EnsureFailed, *Complete, *FailedResult, error) {
	state.mu.Lock()

	if state.cursorState != AwaitingResult {
		state.mu.Unlock()
		return nil, nil, nil, nil, &ProtocolErr{Message: "step_done received while flow is not awaiting a result"}
	}
	if state.currentStepID != stepID {
		state.mu.Unlock()
		return nil, nil, nil, nil, &ProtocolErr{Message: fmt.Sprintf("reported step %q does not match dispatched step %q", stepID, state.currentStepID)}
	}

	idx := state.cursor
	step := state.order[idx]
	fn, _ := state.Spec.Function(step.Function)
	contract, _ := state.Spec.Contract(fn.Output)

	state.attempts[stepID]++
	attempt := state.attempts[stepID]
	dispatchedAt := state.dispatchedAt[stepID]
	state.mu.Unlock()

	violations := evaluateOutcome(state, step, fn, contract, result)

	if len(violations) == 0 {
		state.mu.Lock()
		state.outputs[stepID] = result
		state.records = append(state.records, StepRecord{
			StepID:       stepID,
			FunctionName: fn.Name,
			Attempts:     attempt,
			DispatchedAt: dispatchedAt,
			CompletedAt:  time.Now(),
			Outcome:      OutcomeCompleted,
		})
		state.cursor++
		if state.cursor >= len(state.order) {
			state.cursorState = Completed
			state.currentStepID = ""
			out := state.outputs[stepID]
			state.mu.Unlock()
			return nil, nil, &Complete{FlowID: state.ID, Output: out, Trace: copyRecords(state)}, nil, nil
		}
		state.cursorState = Dispatching
		state.mu.Unlock()

		envelope, err := dispatchEnvelope(state, state.cursor)
		if err != nil {
			nextStep := state.order[state.cursor]
			nextFnName := nextStep.Function
			if nextFn, ok := state.Spec.Function(nextStep.Function); ok {
				nextFnName = nextFn.Name
			}
			failedAt := time.Now()
			state.mu.Lock()
			state.records = append(state.records, StepRecord{
				StepID:       nextStep.ID,
				FunctionName: nextFnName,
				Attempts:     0,
				DispatchedAt: failedAt,
				CompletedAt:  failedAt,
				Outcome:      OutcomeDispatchFailed,
			})
			state.cursorState = Failed
			state.mu.Unlock()
			return nil, nil, nil, nil, err
		}
		state.mu.Lock()
		state.currentStepID = envelope.StepID
		state.cursorState = AwaitingResult
		state.mu.Unlock()
		return envelope, nil, nil, nil, nil
	}

	retries := fn.Retries
	if attempt <= retries {
		remaining := (retries + 1) - attempt
		return nil, &EnsureFailed{FlowID: state.ID, StepID: stepID, Violations: violations, RetriesRemaining: remaining}, nil, nil, nil
	}

	state.mu.Lock()
	state.records = append(state.records, StepRecord{
		StepID:       stepID,
		FunctionName: fn.Name,
		Attempts:     attempt,
		DispatchedAt: dispatchedAt,
		CompletedAt:  time.Now(),
		Outcome:      OutcomeRetryExhausted,
	})
	state.cursorState = Failed
	state.currentStepID = ""
	state.mu.Unlock()

	return nil, nil, nil, &FailedResult{FlowID: state.ID, StepID: stepID, Violations: violations}, nil
}

// evaluateOutcome runs the contract shape check followed by the
// function's postconditions in declared order (spec.md §4.6 runs before
// §4.5's user-declared ensure evaluation).
func evaluateOutcome(state *State, step ir.StepDef, fn *ir.FunctionDef, contract *ir.Contract, result map[string]any) []string {
	var violations []string

	fieldOrder := make([]string, 0, len(contract.Fields))
	for name := range contract.Fields {
		fieldOrder = append(fieldOrder, name)
	}
	sort.Strings(fieldOrder)
	violations = append(violations, contract.CheckShape(result, fieldOrder)...)

	state.mu.RLock()
	preds := state.ensures[fn.Name]
	state.mu.RUnlock()

	for _, p := range preds {
		ok, err := p.fn(result)
		if err != nil {
			violations = append(violations, p.expr+" (failed to evaluate)")
			continue
		}
		if !ok {
			violations = append(violations, p.expr)
		}
	}

	return violations
}

func copyRecords(state *State) []StepRecord {
	out := make([]StepRecord, len(state.records))
	copy(out, state.records)
	return out
}
