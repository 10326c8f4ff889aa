// Package resolver evaluates $-reference strings against flow inputs and
// prior step outputs (spec.md §4.3). Resolution happens at step dispatch
// time, never at plan time.
package resolver

import (
	"fmt"
	"strings"
)

// ResolutionErr reports a $-reference that could not be resolved.
type ResolutionErr struct {
	Reference string
	Reason    string
}

func (e *ResolutionErr) Error() string {
	return fmt.Sprintf("resolution error: %q: %s", e.Reference, e.Reason)
}

// Resolve evaluates reference against flowInputs and stepOutputs.
// Any string not beginning with "$." is returned verbatim as a literal.
func Resolve(reference string, flowInputs map[string]any, stepOutputs map[string]map[string]any) (any, error) {
	if !strings.HasPrefix(reference, "$.") {
		return reference, nil
	}

	rest := reference[len("$."):]
	segments := strings.Split(rest, ".")

	switch segments[0] {
	case "input":
		if len(segments) < 2 {
			return nil, &ResolutionErr{Reference: reference, Reason: "malformed $.input reference"}
		}
		field := segments[1]
		value, ok := flowInputs[field]
		if !ok {
			return nil, &ResolutionErr{Reference: reference, Reason: fmt.Sprintf("flow input %q is not defined", field)}
		}
		return value, nil

	case "steps":
		if len(segments) < 3 || segments[2] != "output" {
			return nil, &ResolutionErr{Reference: reference, Reason: "malformed $.steps reference, expected $.steps.<id>.output"}
		}
		stepID := segments[1]
		output, ok := stepOutputs[stepID]
		if !ok {
			return nil, &ResolutionErr{
				Reference: reference,
				Reason:    fmt.Sprintf("step %q has not completed — check depends_on or step ordering", stepID),
			}
		}

		if len(segments) == 3 {
			return output, nil
		}

		return navigate(output, segments[3:], reference)

	default:
		return nil, &ResolutionErr{Reference: reference, Reason: "unknown $-reference prefix"}
	}
}

// navigate walks value by the dot-separated path, using key lookup on
// maps. A scalar leaf with remaining path segments is a resolution
// error: the path expects to keep descending.
func navigate(value any, path []string, reference string) (any, error) {
	current := value
	for _, segment := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, &ResolutionErr{
				Reference: reference,
				Reason:    fmt.Sprintf("cannot navigate into non-object value at %q", segment),
			}
		}
		next, ok := m[segment]
		if !ok {
			return nil, &ResolutionErr{
				Reference: reference,
				Reason:    fmt.Sprintf("field %q not found", segment),
			}
		}
		current = next
	}
	return current, nil
}
