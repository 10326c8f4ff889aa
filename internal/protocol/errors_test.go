package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"stratum/internal/flow"
	"stratum/internal/ir"
	"stratum/internal/resolver"
	"stratum/internal/sandbox"
	"stratum/internal/scheduler"
)

func TestToErrorEnvelopeMapsEveryKnownType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"parse", &ir.ParseErr{Message: "bad yaml"}, "parse_error"},
		{"validation", &ir.ValidationErr{Path: "version", Message: "missing"}, "validation_error"},
		{"semantic", &ir.SemanticErr{Path: "flows.main.output", Message: "undefined"}, "semantic_error"},
		{"unknown version", &ir.UnknownVersionErr{Version: "v99", Known: []string{"v1"}}, "validation_error"},
		{"cycle", &scheduler.CycleErr{Remaining: []string{"a"}}, "execution_error"},
		{"resolution", &resolver.ResolutionErr{Reference: "$.input.x", Reason: "not found"}, "resolution_error"},
		{"compile", &sandbox.CompileErr{Expr: "result.x", Reason: "bad"}, "compile_error"},
		{"execution", &flow.ExecutionErr{Message: "unknown flow"}, "execution_error"},
		{"unknown flow", &flow.UnknownFlowErr{FlowID: "abc"}, "execution_error"},
		{"protocol", &flow.ProtocolErr{Message: "wrong step"}, "execution_error"},
		{"unrecognized", errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := toErrorEnvelope(tt.err)
			assert.False(t, env.Success)
			assert.Equal(t, tt.want, env.ErrorType)
		})
	}
}

func TestToErrorEnvelopeNeverLeaksRawTextForUnrecognizedErrors(t *testing.T) {
	env := toErrorEnvelope(errors.New("some internal detail nobody external should see"))
	assert.Equal(t, "an internal error occurred", env.Message)
}
