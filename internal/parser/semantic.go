package parser

import (
	"fmt"

	"stratum/internal/ir"
)

// validateSemantics walks the IR performing the reference-integrity
// checks of spec.md §4.1 stage 5. Reference integrity for $.steps.<id>
// mentioned inside input bindings is intentionally NOT checked here —
// it is enforced by the scheduler and the reference resolver.
func validateSemantics(spec *ir.Spec) error {
	for name, fn := range spec.Functions {
		if _, ok := spec.Contract(fn.Output); !ok {
			return &ir.SemanticErr{
				Path:    "functions." + name + ".output",
				Message: fmt.Sprintf("references undefined contract %q", fn.Output),
			}
		}
	}

	for name, flow := range spec.Flows {
		if _, ok := spec.Contract(flow.Output); !ok {
			return &ir.SemanticErr{
				Path:    "flows." + name + ".output",
				Message: fmt.Sprintf("references undefined contract %q", flow.Output),
			}
		}

		seen := make(map[string]bool, len(flow.Steps))
		for i, step := range flow.Steps {
			if _, ok := spec.Function(step.Function); !ok {
				return &ir.SemanticErr{
					Path:    fmt.Sprintf("flows.%s.steps[%d].function", name, i),
					Message: fmt.Sprintf("references undefined function %q", step.Function),
				}
			}

			for _, dep := range step.DependsOn {
				if !seen[dep] {
					return &ir.SemanticErr{
						Path:    fmt.Sprintf("flows.%s.steps[%d].depends_on", name, i),
						Message: fmt.Sprintf("depends_on %q does not name a prior step in this flow", dep),
					}
				}
			}

			seen[step.ID] = true
		}
	}

	return nil
}
