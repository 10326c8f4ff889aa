package protocol

import (
	"encoding/json"

	"stratum/internal/diag"
	"stratum/internal/flow"
	"stratum/internal/ir"
	"stratum/internal/parser"
)

// Server dispatches decoded requests to the four tool handlers, holding
// the process-lifetime schema registry, parser, flow registry, and
// diagnostic emitter (spec.md §3, §5).
type Server struct {
	parser   *parser.Parser
	registry *flow.Registry
	diag     *diag.Emitter
}

// NewServer wires a ready-to-serve Server from a schema registry.
func NewServer(schemas *ir.SchemaRegistry, emitter *diag.Emitter) *Server {
	return &Server{
		parser:   parser.New(schemas),
		registry: flow.NewRegistry(),
		diag:     emitter,
	}
}

// Handle dispatches req to the matching tool handler and returns the
// response value to marshal. Every handler below returns its own domain
// errors as ErrorEnvelope values rather than propagating them as Go
// errors.
func (s *Server) Handle(req *Request) any {
	switch req.Tool {
	case "validate":
		return s.handleValidate(req.Params)
	case "plan":
		return s.handlePlan(req.Params)
	case "step_done":
		return s.handleStepDone(req.Params)
	case "audit":
		return s.handleAudit(req.Params)
	default:
		return ErrorEnvelope{Success: false, ErrorType: "validation_error", Message: "unknown tool " + req.Tool}
	}
}

func (s *Server) handleValidate(raw []byte) any {
	var params ValidateParams
	if env, bad := unmarshalParams(raw, &params); bad {
		return env
	}

	if _, err := s.parser.ParseAndValidate([]byte(params.SpecText)); err != nil {
		return ValidateResponse{Valid: false, Errors: []ErrorEnvelope{toErrorEnvelope(err)}}
	}
	return ValidateResponse{Valid: true}
}

func (s *Server) handlePlan(raw []byte) any {
	var params PlanParams
	if env, bad := unmarshalParams(raw, &params); bad {
		return env
	}

	spec, err := s.parser.ParseAndValidate([]byte(params.SpecText))
	if err != nil {
		return toErrorEnvelope(err)
	}

	state, dispatch, complete, err := flow.Plan(s.registry, spec, params.FlowName, params.Inputs)
	if err != nil {
		return toErrorEnvelope(err)
	}

	if s.diag != nil {
		s.diag.Emit(diag.Event{FlowID: idOf(state), State: diag.StateFlowCreated, Message: "flow " + params.FlowName + " planned"})
	}

	if complete != nil {
		if s.diag != nil {
			s.diag.Emit(diag.Event{FlowID: complete.FlowID, State: diag.StateCompleted, Message: "zero-step flow"})
		}
		return completeResponse(complete)
	}

	if s.diag != nil {
		s.diag.Emit(diag.Event{FlowID: dispatch.FlowID, StepID: dispatch.StepID, State: diag.StateDispatched})
	}
	return dispatchResponse(dispatch)
}

func (s *Server) handleStepDone(raw []byte) any {
	var params StepDoneParams
	if env, bad := unmarshalParams(raw, &params); bad {
		return env
	}

	state, ok := s.registry.Get(params.FlowID)
	if !ok {
		return toErrorEnvelope(&flow.UnknownFlowErr{FlowID: params.FlowID})
	}

	dispatch, ensureFailed, complete, failed, err := flow.StepDone(state, params.StepID, params.Result)
	if err != nil {
		if s.diag != nil {
			s.diag.Emit(diag.Event{FlowID: params.FlowID, StepID: params.StepID, State: diag.StateProtocolErr, Message: err.Error()})
		}
		return toErrorEnvelope(err)
	}

	switch {
	case ensureFailed != nil:
		if s.diag != nil {
			s.diag.Emit(diag.Event{FlowID: ensureFailed.FlowID, StepID: ensureFailed.StepID, State: diag.StateEnsureFailed, Message: "retrying"})
		}
		return EnsureFailedResponse{
			Status:           "ensure_failed",
			FlowID:           ensureFailed.FlowID,
			StepID:           ensureFailed.StepID,
			Violations:       ensureFailed.Violations,
			RetriesRemaining: ensureFailed.RetriesRemaining,
		}
	case complete != nil:
		if s.diag != nil {
			s.diag.Emit(diag.Event{FlowID: complete.FlowID, State: diag.StateCompleted})
		}
		return completeResponse(complete)
	case failed != nil:
		if s.diag != nil {
			s.diag.Emit(diag.Event{FlowID: failed.FlowID, StepID: failed.StepID, State: diag.StateFailed})
		}
		return FailedResponse{
			Status:     "failed",
			FlowID:     failed.FlowID,
			StepID:     failed.StepID,
			Violations: failed.Violations,
			Final:      true,
		}
	default:
		if s.diag != nil {
			s.diag.Emit(diag.Event{FlowID: dispatch.FlowID, StepID: dispatch.StepID, State: diag.StateDispatched})
		}
		return dispatchResponse(dispatch)
	}
}

func (s *Server) handleAudit(raw []byte) any {
	var params AuditParams
	if env, bad := unmarshalParams(raw, &params); bad {
		return env
	}

	state, ok := s.registry.Get(params.FlowID)
	if !ok {
		return toErrorEnvelope(&flow.UnknownFlowErr{FlowID: params.FlowID})
	}

	records := state.Audit()
	trace := make([]TraceEntry, len(records))
	for i, r := range records {
		trace[i] = TraceEntry{
			StepID:       r.StepID,
			Function:     r.FunctionName,
			Attempts:     r.Attempts,
			DispatchedAt: r.DispatchedAt.Format(timeLayout),
			CompletedAt:  r.CompletedAt.Format(timeLayout),
			Outcome:      string(r.Outcome),
		}
	}
	return AuditResponse{Status: "audit", FlowID: params.FlowID, Trace: trace}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func dispatchResponse(d *flow.StepDispatch) DispatchResponse {
	fields := make(map[string]string, len(d.OutputFields))
	for k, v := range d.OutputFields {
		fields[k] = string(v)
	}
	return DispatchResponse{
		Status:           "execute_step",
		FlowID:           d.FlowID,
		StepID:           d.StepID,
		Function:         d.Function,
		Intent:           d.Intent,
		Inputs:           d.Inputs,
		OutputContract:   d.OutputContract,
		OutputFields:     fields,
		Ensure:           d.Ensure,
		RetriesRemaining: d.RetriesRemaining,
	}
}

func completeResponse(c *flow.Complete) CompleteResponse {
	trace := make([]TraceEntry, len(c.Trace))
	for i, r := range c.Trace {
		trace[i] = TraceEntry{
			StepID:       r.StepID,
			Function:     r.FunctionName,
			Attempts:     r.Attempts,
			DispatchedAt: r.DispatchedAt.Format(timeLayout),
			CompletedAt:  r.CompletedAt.Format(timeLayout),
			Outcome:      string(r.Outcome),
		}
	}
	return CompleteResponse{Status: "complete", FlowID: c.FlowID, Output: c.Output, Trace: trace}
}

func idOf(state *flow.State) string {
	if state == nil {
		return ""
	}
	return state.ID
}

// unmarshalParams decodes raw into dst, reporting bad=true alongside a
// ready-to-return ErrorEnvelope when the parameters are malformed JSON.
func unmarshalParams(raw []byte, dst any) (ErrorEnvelope, bool) {
	if err := json.Unmarshal(raw, dst); err != nil {
		return ErrorEnvelope{Success: false, ErrorType: "parse_error", Message: "malformed request parameters: " + err.Error()}, true
	}
	return ErrorEnvelope{}, false
}
