// Package ir defines the typed intermediate representation of a Stratum
// spec: contracts, functions, steps and flows, plus the version registry
// that maps a spec-format string to its structural schema.
package ir

// PrimitiveType is one of the field types a Contract or function
// input/output map may declare.
type PrimitiveType string

const (
	TypeString  PrimitiveType = "string"
	TypeNumber  PrimitiveType = "number"
	TypeInteger PrimitiveType = "integer"
	TypeBoolean PrimitiveType = "boolean"
)

// Conforms reports whether value is an acceptable Go representation of t.
// Numbers decoded from YAML/JSON arrive as float64, int, or int64
// depending on the decode path; integer additionally requires no
// fractional part.
func (t PrimitiveType) Conforms(value any) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case TypeNumber:
		switch value.(type) {
		case int, int32, int64, float64:
			return true
		}
		return false
	default:
		return false
	}
}

// FieldMap is a declared field name -> primitive type mapping, used both
// for Contract fields and for function/flow input parameter lists.
type FieldMap map[string]PrimitiveType

// Contract is a named structured type. Immutable after registration.
type Contract struct {
	Name   string
	Fields FieldMap
}

// CheckShape validates result against the contract's declared fields and
// returns one synthetic violation string per missing or wrongly typed
// field, in the order of the supplied field names. A contract with zero declared
// fields accepts any object (spec.md §9 open question).
func (c *Contract) CheckShape(result map[string]any, order []string) []string {
	var violations []string
	for _, name := range order {
		typ := c.Fields[name]
		value, present := result[name]
		if !present {
			violations = append(violations, "contract: field '"+name+"' missing")
			continue
		}
		if !typ.Conforms(value) {
			violations = append(violations, "contract: field '"+name+"' wrong type")
		}
	}
	return violations
}

// FunctionMode distinguishes functions whose result is produced by LLM
// inference from those computed deterministically by the executor. The
// controller does not treat the two differently at runtime — the
// distinction is informational and is not included in the dispatch
// envelope.
type FunctionMode string

const (
	ModeInfer   FunctionMode = "infer"
	ModeCompute FunctionMode = "compute"
)

// FunctionDef is a named, reusable capability specification.
type FunctionDef struct {
	Name    string
	Mode    FunctionMode
	Intent  string
	Input   FieldMap
	// InputOrder lists the input parameter names sorted alphabetically,
	// giving a deterministic iteration order over Input.
	InputOrder []string
	Output     string // contract name
	Ensure     []string
	Retries    int
	Model      string
}

// StepDef is one dispatchable unit within a flow.
type StepDef struct {
	ID         string
	Function   string
	Inputs     map[string]string // param name -> reference-or-literal
	InputOrder []string
	DependsOn  []string
}

// FlowDef is a named, ordered sequence of steps.
type FlowDef struct {
	Name    string
	Input   FieldMap
	InputOrder []string
	Output  string // contract name
	Steps   []StepDef
}

// Spec is one parsed and validated IR document.
type Spec struct {
	Version   string
	Contracts map[string]*Contract
	Functions map[string]*FunctionDef
	Flows     map[string]*FlowDef
}

// Contract looks up a registered contract by name.
func (s *Spec) Contract(name string) (*Contract, bool) {
	c, ok := s.Contracts[name]
	return c, ok
}

// Function looks up a registered function by name.
func (s *Spec) Function(name string) (*FunctionDef, bool) {
	f, ok := s.Functions[name]
	return f, ok
}

// Flow looks up a registered flow by name.
func (s *Spec) Flow(name string) (*FlowDef, bool) {
	f, ok := s.Flows[name]
	return f, ok
}
