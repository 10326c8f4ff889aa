package protocol

import (
	"errors"

	"stratum/internal/flow"
	"stratum/internal/ir"
	"stratum/internal/resolver"
	"stratum/internal/sandbox"
	"stratum/internal/scheduler"
)

// toErrorEnvelope translates any error raised by internal/ir,
// internal/parser, internal/scheduler, internal/resolver,
// internal/sandbox, or internal/flow into the uniform wire envelope
// (spec.md §6, §9). Every branch produces a message safe to hand to an
// external caller — no Go error text beyond what the originating type
// already curates, no stack traces, no library names.
func toErrorEnvelope(err error) ErrorEnvelope {
	var (
		parseErr     *ir.ParseErr
		validErr     *ir.ValidationErr
		semanticErr  *ir.SemanticErr
		unknownVer   *ir.UnknownVersionErr
		cycleErr     *scheduler.CycleErr
		resolveErr   *resolver.ResolutionErr
		compileErr   *sandbox.CompileErr
		executionErr *flow.ExecutionErr
		unknownFlow  *flow.UnknownFlowErr
		protocolErr  *flow.ProtocolErr
	)

	switch {
	case errors.As(err, &parseErr):
		return ErrorEnvelope{Success: false, ErrorType: "parse_error", Message: parseErr.Message}

	case errors.As(err, &validErr):
		return ErrorEnvelope{
			Success:    false,
			ErrorType:  "validation_error",
			Path:       validErr.Path,
			Message:    validErr.Message,
			Suggestion: validErr.Suggestion,
		}

	case errors.As(err, &semanticErr):
		return ErrorEnvelope{Success: false, ErrorType: "semantic_error", Path: semanticErr.Path, Message: semanticErr.Message}

	case errors.As(err, &unknownVer):
		return ErrorEnvelope{Success: false, ErrorType: "validation_error", Path: "version", Message: unknownVer.Error()}

	case errors.As(err, &cycleErr):
		return ErrorEnvelope{Success: false, ErrorType: "execution_error", Message: cycleErr.Error()}

	case errors.As(err, &resolveErr):
		return ErrorEnvelope{Success: false, ErrorType: "resolution_error", Message: resolveErr.Error()}

	case errors.As(err, &compileErr):
		return ErrorEnvelope{Success: false, ErrorType: "compile_error", Message: compileErr.Error()}

	case errors.As(err, &executionErr):
		return ErrorEnvelope{Success: false, ErrorType: "execution_error", Message: executionErr.Error()}

	case errors.As(err, &unknownFlow):
		return ErrorEnvelope{Success: false, ErrorType: "execution_error", Message: unknownFlow.Error()}

	case errors.As(err, &protocolErr):
		return ErrorEnvelope{Success: false, ErrorType: "execution_error", Message: protocolErr.Error()}

	default:
		return ErrorEnvelope{Success: false, ErrorType: "internal_error", Message: "an internal error occurred"}
	}
}
