package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratum/internal/ir"
	"stratum/internal/sandbox"
	"stratum/internal/scheduler"
)

func singleStepSpec(retries int, ensure []string) *ir.Spec {
	return &ir.Spec{
		Version: "v1",
		Contracts: map[string]*ir.Contract{
			"Result": {Name: "Result", Fields: ir.FieldMap{"score": ir.TypeNumber}},
		},
		Functions: map[string]*ir.FunctionDef{
			"score_text": {
				Name:       "score_text",
				Mode:       ir.ModeInfer,
				Intent:     "score some text",
				Input:      ir.FieldMap{"text": ir.TypeString},
				InputOrder: []string{"text"},
				Output:     "Result",
				Ensure:     ensure,
				Retries:    retries,
			},
		},
		Flows: map[string]*ir.FlowDef{
			"main": {
				Name:   "main",
				Input:  ir.FieldMap{"text": ir.TypeString},
				Output: "Result",
				Steps: []ir.StepDef{
					{
						ID:         "score",
						Function:   "score_text",
						Inputs:     map[string]string{"text": "$.input.text"},
						InputOrder: []string{"text"},
					},
				},
			},
		},
	}
}

func TestPlanZeroStepFlow(t *testing.T) {
	spec := &ir.Spec{
		Version:   "v1",
		Contracts: map[string]*ir.Contract{"Result": {Name: "Result", Fields: ir.FieldMap{}}},
		Functions: map[string]*ir.FunctionDef{},
		Flows: map[string]*ir.FlowDef{
			"empty": {Name: "empty", Output: "Result"},
		},
	}
	registry := NewRegistry()
	state, dispatch, complete, err := Plan(registry, spec, "empty", nil)
	require.NoError(t, err)
	assert.Nil(t, dispatch)
	require.NotNil(t, complete)
	assert.Equal(t, Completed, state.CursorState())
}

func TestPlanUnknownFlow(t *testing.T) {
	spec := singleStepSpec(1, nil)
	registry := NewRegistry()
	_, _, _, err := Plan(registry, spec, "missing", nil)
	require.Error(t, err)
	var eerr *ExecutionErr
	assert.ErrorAs(t, err, &eerr)
}

func TestPlanSandboxEscapeFailsBeforeAnyDispatch(t *testing.T) {
	spec := singleStepSpec(1, []string{"result.__class__"})
	registry := NewRegistry()
	state, dispatch, complete, err := Plan(registry, spec, "main", map[string]any{"text": "hello"})
	require.Error(t, err)
	assert.Nil(t, state)
	assert.Nil(t, dispatch)
	assert.Nil(t, complete)
	var cerr *sandbox.CompileErr
	assert.ErrorAs(t, err, &cerr)
}

func TestPlanCycleDetectionPropagates(t *testing.T) {
	spec := singleStepSpec(1, nil)
	spec.Flows["main"].Steps = []ir.StepDef{
		{ID: "a", Function: "score_text", DependsOn: []string{"b"}},
		{ID: "b", Function: "score_text", DependsOn: []string{"a"}},
	}
	registry := NewRegistry()
	_, _, _, err := Plan(registry, spec, "main", nil)
	require.Error(t, err)
	var cerr *scheduler.CycleErr
	assert.ErrorAs(t, err, &cerr)
}

func TestPlanDispatchEnvelopeShape(t *testing.T) {
	spec := singleStepSpec(2, nil)
	registry := NewRegistry()
	_, dispatch, complete, err := Plan(registry, spec, "main", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Nil(t, complete)
	require.NotNil(t, dispatch)
	assert.Equal(t, "score", dispatch.StepID)
	assert.Equal(t, "score_text", dispatch.Function)
	assert.Equal(t, "Result", dispatch.OutputContract)
	assert.Equal(t, "hello", dispatch.Inputs["text"])
	assert.Equal(t, 3, dispatch.RetriesRemaining) // retries+1 - attempt(0)
}

func TestStepDoneCompletesFlow(t *testing.T) {
	spec := singleStepSpec(1, nil)
	registry := NewRegistry()
	state, dispatch, _, err := Plan(registry, spec, "main", map[string]any{"text": "hello"})
	require.NoError(t, err)

	dispatch2, ensureFailed, complete, failed, err := StepDone(state, dispatch.StepID, map[string]any{"score": 0.9})
	require.NoError(t, err)
	assert.Nil(t, dispatch2)
	assert.Nil(t, ensureFailed)
	assert.Nil(t, failed)
	require.NotNil(t, complete)
	assert.Equal(t, map[string]any{"score": 0.9}, complete.Output)
	require.Len(t, complete.Trace, 1)
	assert.Equal(t, OutcomeCompleted, complete.Trace[0].Outcome)
	assert.Equal(t, Completed, state.CursorState())
}

func TestStepDoneContractShapeViolationTriggersEnsureFailed(t *testing.T) {
	spec := singleStepSpec(2, nil)
	registry := NewRegistry()
	state, dispatch, _, err := Plan(registry, spec, "main", map[string]any{"text": "hello"})
	require.NoError(t, err)

	_, ensureFailed, complete, failed, err := StepDone(state, dispatch.StepID, map[string]any{"score": "not a number"})
	require.NoError(t, err)
	assert.Nil(t, complete)
	assert.Nil(t, failed)
	require.NotNil(t, ensureFailed)
	assert.Equal(t, 2, ensureFailed.RetriesRemaining)
	assert.NotEmpty(t, ensureFailed.Violations)
}

func TestStepDoneEnsureFailureThenRetrySucceeds(t *testing.T) {
	spec := singleStepSpec(1, []string{"result.score >= 0.5"})
	registry := NewRegistry()
	state, dispatch, _, err := Plan(registry, spec, "main", map[string]any{"text": "hello"})
	require.NoError(t, err)

	dispatch2, ensureFailed, complete, failed, err := StepDone(state, dispatch.StepID, map[string]any{"score": 0.1})
	require.NoError(t, err)
	assert.Nil(t, dispatch2)
	assert.Nil(t, complete)
	assert.Nil(t, failed)
	require.NotNil(t, ensureFailed)
	assert.Equal(t, 1, ensureFailed.RetriesRemaining)

	dispatch3, ensureFailed2, complete2, failed2, err := StepDone(state, dispatch.StepID, map[string]any{"score": 0.9})
	require.NoError(t, err)
	assert.Nil(t, dispatch3)
	assert.Nil(t, ensureFailed2)
	assert.Nil(t, failed2)
	require.NotNil(t, complete2)
}

func TestStepDoneRetryExhaustionFails(t *testing.T) {
	spec := singleStepSpec(1, []string{"result.score >= 0.5"})
	registry := NewRegistry()
	state, dispatch, _, err := Plan(registry, spec, "main", map[string]any{"text": "hello"})
	require.NoError(t, err)

	_, ensureFailed, _, _, err := StepDone(state, dispatch.StepID, map[string]any{"score": 0.1})
	require.NoError(t, err)
	require.NotNil(t, ensureFailed)

	_, ensureFailed2, complete, failed, err := StepDone(state, dispatch.StepID, map[string]any{"score": 0.1})
	require.NoError(t, err)
	assert.Nil(t, ensureFailed2)
	assert.Nil(t, complete)
	require.NotNil(t, failed)
	assert.Equal(t, Failed, state.CursorState())
}

func TestStepDoneWrongStepIDIsProtocolError(t *testing.T) {
	spec := singleStepSpec(1, nil)
	registry := NewRegistry()
	state, _, _, err := Plan(registry, spec, "main", map[string]any{"text": "hello"})
	require.NoError(t, err)

	_, _, _, _, err = StepDone(state, "not-the-dispatched-step", map[string]any{"score": 0.9})
	require.Error(t, err)
	var perr *ProtocolErr
	assert.ErrorAs(t, err, &perr)
}

func TestPlanDispatchFailureRollsBackRegistry(t *testing.T) {
	spec := singleStepSpec(1, nil)
	registry := NewRegistry()
	// The flow input the step needs is never supplied, so the first
	// dispatchEnvelope call fails after registry.Create has already run.
	state, dispatch, complete, err := Plan(registry, spec, "main", map[string]any{})
	require.Error(t, err)
	assert.Nil(t, state)
	assert.Nil(t, dispatch)
	assert.Nil(t, complete)

	// The failed plan must not leave a registered flow behind.
	count := 0
	registry.flows.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, 0, count)
}

func TestStepDoneAdvanceDispatchFailureRecordsAudit(t *testing.T) {
	spec := &ir.Spec{
		Version: "v1",
		Contracts: map[string]*ir.Contract{
			"Result": {Name: "Result", Fields: ir.FieldMap{"score": ir.TypeNumber}},
		},
		Functions: map[string]*ir.FunctionDef{
			"score_text": {
				Name:       "score_text",
				Mode:       ir.ModeInfer,
				Intent:     "score some text",
				Input:      ir.FieldMap{"text": ir.TypeString},
				InputOrder: []string{"text"},
				Output:     "Result",
				Retries:    1,
			},
		},
		Flows: map[string]*ir.FlowDef{
			"main": {
				Name:   "main",
				Input:  ir.FieldMap{"text": ir.TypeString},
				Output: "Result",
				Steps: []ir.StepDef{
					{
						ID:         "first",
						Function:   "score_text",
						Inputs:     map[string]string{"text": "$.input.text"},
						InputOrder: []string{"text"},
					},
					{
						ID:         "second",
						Function:   "score_text",
						DependsOn:  []string{"first"},
						// Second step needs a flow input that was never
						// supplied, so its dispatchEnvelope build fails
						// once "first" completes and the cursor advances.
						Inputs:     map[string]string{"text": "$.input.missing"},
						InputOrder: []string{"text"},
					},
				},
			},
		},
	}
	registry := NewRegistry()
	state, dispatch, _, err := Plan(registry, spec, "main", map[string]any{"text": "hello"})
	require.NoError(t, err)
	require.Equal(t, "first", dispatch.StepID)

	_, _, _, _, err = StepDone(state, dispatch.StepID, map[string]any{"score": 0.9})
	require.Error(t, err)
	assert.Equal(t, Failed, state.CursorState())

	trace := state.Audit()
	require.Len(t, trace, 2)
	assert.Equal(t, "first", trace[0].StepID)
	assert.Equal(t, OutcomeCompleted, trace[0].Outcome)
	assert.Equal(t, "second", trace[1].StepID)
	assert.Equal(t, OutcomeDispatchFailed, trace[1].Outcome)
}

func TestAuditReturnsAppendOnlyTrace(t *testing.T) {
	spec := singleStepSpec(1, nil)
	registry := NewRegistry()
	state, dispatch, _, err := Plan(registry, spec, "main", map[string]any{"text": "hello"})
	require.NoError(t, err)

	_, _, _, _, err = StepDone(state, dispatch.StepID, map[string]any{"score": 0.9})
	require.NoError(t, err)

	trace := state.Audit()
	require.Len(t, trace, 1)
	assert.Equal(t, "score", trace[0].StepID)
}
