package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratum/internal/ir"
)

func ids(steps []ir.StepDef) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID
	}
	return out
}

func TestOrderExplicitDependsOn(t *testing.T) {
	flow := &ir.FlowDef{Steps: []ir.StepDef{
		{ID: "c", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "a"},
	}}

	ordered, err := Order(flow)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(ordered))
}

func TestOrderImplicitStepReference(t *testing.T) {
	flow := &ir.FlowDef{Steps: []ir.StepDef{
		{ID: "consume", Inputs: map[string]string{"text": "$.steps.produce.output.text"}},
		{ID: "produce"},
	}}

	ordered, err := Order(flow)
	require.NoError(t, err)
	assert.Equal(t, []string{"produce", "consume"}, ids(ordered))
}

func TestOrderTieBreaksByOriginalIndex(t *testing.T) {
	flow := &ir.FlowDef{Steps: []ir.StepDef{
		{ID: "a"},
		{ID: "b"},
		{ID: "c"},
	}}

	ordered, err := Order(flow)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(ordered))
}

func TestOrderDetectsCycle(t *testing.T) {
	flow := &ir.FlowDef{Steps: []ir.StepDef{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	}}

	_, err := Order(flow)
	require.Error(t, err)
	var cerr *CycleErr
	require.ErrorAs(t, err, &cerr)
	assert.ElementsMatch(t, []string{"a", "b"}, cerr.Remaining)
}

func TestOrderIgnoresNonStepBindings(t *testing.T) {
	flow := &ir.FlowDef{Steps: []ir.StepDef{
		{ID: "a", Inputs: map[string]string{"text": "$.input.text"}},
	}}

	ordered, err := Order(flow)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(ordered))
}
