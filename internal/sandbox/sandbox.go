package sandbox

import (
	"fmt"
	"strings"
)

// Predicate is a compiled postcondition: call it with the step's
// reported result (arriving as a map[string]any, or any other scalar)
// to get a pass/fail boolean, or a CompileErr if evaluation itself
// failed (distinct from evaluating to false — spec.md §4.2).
type Predicate func(result any) (bool, error)

// CompileEnsure compiles expr under the sandbox rules: no builtins, no
// import, no global names besides "result" and the whitelisted helper
// calls, and no attribute name beginning or ending with an underscore.
// All of these are checked at compile time, against the expression
// text, never deferred to evaluation.
func CompileEnsure(expr string) (Predicate, error) {
	ast, err := parseExpr(expr)
	if err != nil {
		return nil, &CompileErr{Expr: expr, Reason: err.Error()}
	}
	if err := checkAttributeNames(ast); err != nil {
		return nil, &CompileErr{Expr: expr, Reason: err.Error()}
	}

	return func(result any) (bool, error) {
		value, err := evalNode(ast, &evalCtx{result: result})
		if err != nil {
			return false, &CompileErr{Expr: expr, Reason: "failed to evaluate: " + err.Error()}
		}
		return truthy(value), nil
	}, nil
}

// checkAttributeNames walks the AST rejecting any attribute access whose
// name starts or ends with '_' — this blocks __class__, __globals__,
// __reduce__, and private-convention escapes, structurally, before any
// value of result is ever bound.
func checkAttributeNames(n node) error {
	switch t := n.(type) {
	case *attrNode:
		if strings.HasPrefix(t.name, "_") || strings.HasSuffix(t.name, "_") {
			return fmt.Errorf("attribute name %q is not permitted (leading/trailing underscore)", t.name)
		}
		return checkAttributeNames(t.x)
	case *unaryNode:
		return checkAttributeNames(t.x)
	case *binaryNode:
		if err := checkAttributeNames(t.l); err != nil {
			return err
		}
		return checkAttributeNames(t.r)
	case *indexNode:
		if err := checkAttributeNames(t.x); err != nil {
			return err
		}
		return checkAttributeNames(t.i)
	case *callNode:
		for _, a := range t.args {
			if err := checkAttributeNames(a); err != nil {
				return err
			}
		}
	}
	return nil
}
