package sandbox

import "fmt"

// CompileErr reports a postcondition expression that could not be
// compiled under the sandbox rules: unknown syntax, a disallowed name,
// a non-whitelisted call, or a dunder/underscore-leading attribute
// access. It also covers expressions that compiled but raised an
// exception during evaluation (spec.md §4.2: "evaluated to false" and
// "failed to evaluate" are distinct).
type CompileErr struct {
	Expr   string
	Reason string
}

func (e *CompileErr) Error() string {
	return fmt.Sprintf("compile error in expression %q: %s", e.Expr, e.Reason)
}
