// Package parser implements the IR parser and validator: spec.md §4.1.
// It takes raw spec text through five stages — tree decode, version
// select, structural schema validation, typed-IR construction, and
// semantic validation — each producing a distinct error class on
// failure.
package parser

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"stratum/internal/ir"
)

const defaultRetries = 3

// Parser parses and validates spec text against a fixed schema registry.
type Parser struct {
	registry *ir.SchemaRegistry
}

// New builds a Parser backed by registry.
func New(registry *ir.SchemaRegistry) *Parser {
	return &Parser{registry: registry}
}

// ParseAndValidate runs all five stages of spec.md §4.1 and returns an
// immutable *ir.Spec, or the first error encountered.
func (p *Parser) ParseAndValidate(raw []byte) (*ir.Spec, error) {
	// Stage 1: text -> tree.
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, &ir.ParseErr{Message: err.Error(), Cause: err}
	}
	if tree == nil {
		return nil, &ir.ParseErr{Message: "empty document"}
	}

	// Stage 2: version select.
	versionRaw, ok := tree["version"]
	if !ok {
		return nil, &ir.ValidationErr{Path: "version", Message: "version is required", Suggestion: "known versions: " + joinKnown(p.registry.KnownVersions())}
	}
	version, ok := versionRaw.(string)
	if !ok {
		return nil, &ir.ValidationErr{Path: "version", Message: "version must be a string", Suggestion: "known versions: " + joinKnown(p.registry.KnownVersions())}
	}
	schema, err := p.registry.Schema(version)
	if err != nil {
		uve, _ := err.(*ir.UnknownVersionErr)
		return nil, &ir.ValidationErr{
			Path:       "version",
			Message:    fmt.Sprintf("unknown spec version %q", version),
			Suggestion: "known versions: " + joinKnown(uve.Known),
		}
	}

	// Stage 3: structural schema validation.
	if err := ir.ValidateStructure(schema, tree); err != nil {
		return nil, err
	}

	// Stage 4: structural -> typed IR, with defaults normalized.
	spec, err := build(version, tree)
	if err != nil {
		return nil, err
	}

	// Stage 5: semantic validation.
	if err := validateSemantics(spec); err != nil {
		return nil, err
	}

	return spec, nil
}

func joinKnown(versions []string) string {
	sort.Strings(versions)
	out := ""
	for i, v := range versions {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}

func build(version string, tree map[string]any) (*ir.Spec, error) {
	spec := &ir.Spec{
		Version:   version,
		Contracts: map[string]*ir.Contract{},
		Functions: map[string]*ir.FunctionDef{},
		Flows:     map[string]*ir.FlowDef{},
	}

	contractsRaw, _ := tree["contracts"].(map[string]any)
	for name, raw := range contractsRaw {
		fields, err := buildFieldMap(raw)
		if err != nil {
			return nil, &ir.ValidationErr{Path: "contracts." + name, Message: err.Error()}
		}
		spec.Contracts[name] = &ir.Contract{Name: name, Fields: fields}
	}

	functionsRaw, _ := tree["functions"].(map[string]any)
	for name, raw := range functionsRaw {
		fn, err := buildFunction(name, raw)
		if err != nil {
			return nil, err
		}
		spec.Functions[name] = fn
	}

	flowsRaw, _ := tree["flows"].(map[string]any)
	for name, raw := range flowsRaw {
		flow, err := buildFlow(name, raw)
		if err != nil {
			return nil, err
		}
		spec.Flows[name] = flow
	}

	return spec, nil
}

func buildFieldMap(raw any) (ir.FieldMap, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a field map")
	}
	fields := make(ir.FieldMap, len(m))
	for field, typeRaw := range m {
		typeMap, ok := typeRaw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: expected {type: ...}", field)
		}
		t, _ := typeMap["type"].(string)
		fields[field] = ir.PrimitiveType(t)
	}
	return fields, nil
}

func orderedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildFunction(name string, raw any) (*ir.FunctionDef, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &ir.ValidationErr{Path: "functions." + name, Message: "expected an object"}
	}

	fn := &ir.FunctionDef{
		Name:    name,
		Retries: defaultRetries,
	}
	if mode, _ := m["mode"].(string); mode != "" {
		fn.Mode = ir.FunctionMode(mode)
	}
	fn.Intent, _ = m["intent"].(string)
	fn.Output, _ = m["output"].(string)
	fn.Model, _ = m["model"].(string)

	if inputRaw, ok := m["input"]; ok {
		fields, err := buildFieldMap(inputRaw)
		if err != nil {
			return nil, &ir.ValidationErr{Path: "functions." + name + ".input", Message: err.Error()}
		}
		fn.Input = fields
		if inputMap, ok := inputRaw.(map[string]any); ok {
			fn.InputOrder = orderedKeys(inputMap)
		}
	}

	if ensureRaw, ok := m["ensure"].([]any); ok {
		for _, e := range ensureRaw {
			if s, ok := e.(string); ok {
				fn.Ensure = append(fn.Ensure, s)
			}
		}
	}

	if retriesRaw, ok := m["retries"]; ok {
		switch v := retriesRaw.(type) {
		case int:
			fn.Retries = v
		case float64:
			fn.Retries = int(v)
		}
	}

	return fn, nil
}

func buildFlow(name string, raw any) (*ir.FlowDef, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &ir.ValidationErr{Path: "flows." + name, Message: "expected an object"}
	}

	flow := &ir.FlowDef{Name: name}
	flow.Output, _ = m["output"].(string)

	if inputRaw, ok := m["input"]; ok {
		fields, err := buildFieldMap(inputRaw)
		if err != nil {
			return nil, &ir.ValidationErr{Path: "flows." + name + ".input", Message: err.Error()}
		}
		flow.Input = fields
		if inputMap, ok := inputRaw.(map[string]any); ok {
			flow.InputOrder = orderedKeys(inputMap)
		}
	}

	stepsRaw, _ := m["steps"].([]any)
	for i, stepRaw := range stepsRaw {
		step, err := buildStep(name, i, stepRaw)
		if err != nil {
			return nil, err
		}
		flow.Steps = append(flow.Steps, *step)
	}

	return flow, nil
}

func buildStep(flowName string, index int, raw any) (*ir.StepDef, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &ir.ValidationErr{Path: fmt.Sprintf("flows.%s.steps[%d]", flowName, index), Message: "expected an object"}
	}

	step := &ir.StepDef{}
	step.ID, _ = m["id"].(string)
	step.Function, _ = m["function"].(string)

	if inputsRaw, ok := m["inputs"].(map[string]any); ok {
		step.Inputs = make(map[string]string, len(inputsRaw))
		for k, v := range inputsRaw {
			if s, ok := v.(string); ok {
				step.Inputs[k] = s
			}
		}
		step.InputOrder = orderedKeys(inputsRaw)
	}

	// missing depends_on -> empty list (spec.md §4.1 stage 4 default)
	if dependsRaw, ok := m["depends_on"].([]any); ok {
		for _, d := range dependsRaw {
			if s, ok := d.(string); ok {
				step.DependsOn = append(step.DependsOn, s)
			}
		}
	}

	return step, nil
}
