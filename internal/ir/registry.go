package ir

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// schemaFiles maps a spec version string to the embedded schema document
// that structurally validates it. Adding a new spec version requires
// exactly one entry here plus one file under schemas/, per the design
// note in spec.md §9.
var schemaFiles = map[string]string{
	"v1": "schemas/v1.schema.json",
}

// SchemaRegistry compiles and holds one jsonschema.Schema per known spec
// version. It is built once at process start and never mutated afterward,
// so concurrent lookups from multiple protocol turns are safe without
// additional locking.
type SchemaRegistry struct {
	schemas map[string]*jsonschema.Schema
}

// KnownVersions returns the registered version strings in sorted order,
// used to populate the Known field of an UnknownVersionErr.
func (r *SchemaRegistry) KnownVersions() []string {
	versions := make([]string, 0, len(r.schemas))
	for v := range r.schemas {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Schema returns the compiled schema for version, or an UnknownVersionErr.
func (r *SchemaRegistry) Schema(version string) (*jsonschema.Schema, error) {
	s, ok := r.schemas[version]
	if !ok {
		return nil, &UnknownVersionErr{Version: version, Known: r.KnownVersions()}
	}
	return s, nil
}

// NewSchemaRegistry compiles every embedded schema document. It is a
// package-level constructor rather than an init()-time global so that
// compilation errors surface to the caller instead of panicking at
// import time.
func NewSchemaRegistry() (*SchemaRegistry, error) {
	reg := &SchemaRegistry{schemas: make(map[string]*jsonschema.Schema, len(schemaFiles))}
	for version, path := range schemaFiles {
		data, err := schemaFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("ir: reading embedded schema %s: %w", path, err)
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("ir: schema %s is not valid JSON: %w", path, err)
		}
		compiler := jsonschema.NewCompiler()
		url := "stratum://schema/" + version
		if err := compiler.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("ir: adding schema resource %s: %w", path, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("ir: compiling schema %s: %w", path, err)
		}
		reg.schemas[version] = schema
	}
	return reg, nil
}

// ValidateStructure runs schema against doc and, on failure, translates
// the jsonschema error tree into a single ValidationErr naming the most
// specific failing node: dotted path, human-readable violation, and an
// actionable fix hint derived from the kind of constraint violated
// (spec.md §4.1 stage 3).
func ValidateStructure(schema *jsonschema.Schema, doc any) error {
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &ValidationErr{Message: err.Error()}
	}
	leaf := deepestCause(verr)
	return &ValidationErr{
		Path:       dottedPath(leaf.InstanceLocation),
		Message:    leaf.Error(),
		Suggestion: suggestionFor(leaf),
	}
}

// deepestCause walks the Causes tree to the most specific (deepest, by
// instance-location length) leaf error. jsonschema reports the violation
// tree depth-first; the leaf closest to the actual failing value is the
// most actionable one to surface.
func deepestCause(e *jsonschema.ValidationError) *jsonschema.ValidationError {
	best := e
	for _, cause := range e.Causes {
		candidate := deepestCause(cause)
		if len(candidate.InstanceLocation) > len(best.InstanceLocation) {
			best = candidate
		}
	}
	return best
}

func dottedPath(segments []string) string {
	if len(segments) == 0 {
		return "$"
	}
	return strings.Join(segments, ".")
}

// suggestionFor derives an actionable fix hint from the kind of schema
// constraint a leaf error violates (spec.md §4.1 stage 3).
func suggestionFor(e *jsonschema.ValidationError) string {
	switch k := e.ErrorKind.(type) {
	case *kind.Enum:
		want := make([]string, 0, len(k.Want))
		for _, w := range k.Want {
			want = append(want, fmt.Sprintf("%v", w))
		}
		return "allowed values: " + strings.Join(want, ", ")
	case *kind.Required:
		return "add required field(s): " + strings.Join(k.Missing, ", ")
	case *kind.AdditionalProperties:
		return "remove unrecognized field(s): " + strings.Join(k.Properties, ", ")
	case *kind.Const:
		return fmt.Sprintf("expected exact value %v", k.Want)
	default:
		return ""
	}
}
