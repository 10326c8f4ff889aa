package sandbox

import (
	"fmt"
	"strings"
)

// evalCtx carries the bound environment for one evaluation: the value of
// the single name "result". Helper calls are looked up in helperFuncs.
type evalCtx struct {
	result any
}

func evalNode(n node, ctx *evalCtx) (any, error) {
	switch t := n.(type) {
	case *literalNode:
		return t.value, nil

	case *nameNode:
		// The parser only ever admits the name "result".
		return wrapNamespace(ctx.result), nil

	case *unaryNode:
		return evalUnary(t, ctx)

	case *binaryNode:
		return evalBinary(t, ctx)

	case *attrNode:
		xv, err := evalNode(t.x, ctx)
		if err != nil {
			return nil, err
		}
		ns, ok := xv.(*namespace)
		if !ok {
			return nil, fmt.Errorf("attribute access '.%s' on non-object value", t.name)
		}
		v, ok := ns.get(t.name)
		if !ok {
			return nil, fmt.Errorf("no such field %q", t.name)
		}
		return v, nil

	case *indexNode:
		xv, err := evalNode(t.x, ctx)
		if err != nil {
			return nil, err
		}
		iv, err := evalNode(t.i, ctx)
		if err != nil {
			return nil, err
		}
		return evalIndex(xv, iv)

	case *callNode:
		return evalCall(t, ctx)

	default:
		return nil, fmt.Errorf("internal error: unhandled node type %T", n)
	}
}

func evalUnary(t *unaryNode, ctx *evalCtx) (any, error) {
	v, err := evalNode(t.x, ctx)
	if err != nil {
		return nil, err
	}
	switch t.op {
	case "not":
		return !truthy(v), nil
	case "-":
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("unary '-' on non-numeric value")
		}
		return -f, nil
	default:
		return nil, fmt.Errorf("unhandled unary operator %q", t.op)
	}
}

func evalBinary(t *binaryNode, ctx *evalCtx) (any, error) {
	if t.op == "and" {
		l, err := evalNode(t.l, ctx)
		if err != nil {
			return nil, err
		}
		if !truthy(l) {
			return false, nil
		}
		r, err := evalNode(t.r, ctx)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}
	if t.op == "or" {
		l, err := evalNode(t.l, ctx)
		if err != nil {
			return nil, err
		}
		if truthy(l) {
			return true, nil
		}
		r, err := evalNode(t.r, ctx)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	l, err := evalNode(t.l, ctx)
	if err != nil {
		return nil, err
	}
	r, err := evalNode(t.r, ctx)
	if err != nil {
		return nil, err
	}

	switch t.op {
	case "==":
		return equalValues(l, r), nil
	case "!=":
		return !equalValues(l, r), nil
	case "<", "<=", ">", ">=":
		return compareValues(t.op, l, r)
	case "in":
		return membership(l, r)
	case "+", "-", "*", "/", "%":
		return arithmetic(t.op, l, r)
	default:
		return nil, fmt.Errorf("unhandled binary operator %q", t.op)
	}
}

func evalIndex(x, i any) (any, error) {
	if ns, ok := x.(*namespace); ok {
		key, ok := i.(string)
		if !ok {
			return nil, fmt.Errorf("index into object with non-string key")
		}
		v, ok := ns.get(key)
		if !ok {
			return nil, fmt.Errorf("no such field %q", key)
		}
		return v, nil
	}
	if s, ok := x.([]any); ok {
		idx, ok := toFloat(i)
		if !ok {
			return nil, fmt.Errorf("index must be numeric")
		}
		n := int(idx)
		if n < 0 || n >= len(s) {
			return nil, fmt.Errorf("index %d out of range", n)
		}
		return s[n], nil
	}
	return nil, fmt.Errorf("value is not indexable")
}

func evalCall(t *callNode, ctx *evalCtx) (any, error) {
	args := make([]any, len(t.args))
	for i, a := range t.args {
		v, err := evalNode(a, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	fn, ok := helperFuncs[t.name]
	if !ok {
		return nil, fmt.Errorf("call to non-whitelisted function %q", t.name)
	}
	return fn(args)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case *namespace:
		return len(x.data) > 0
	default:
		return true
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func equalValues(l, r any) bool {
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if lok && rok {
		return lf == rf
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		return ls == rs
	}
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	return l == r
}

func compareValues(op string, l, r any) (bool, error) {
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if lok && rok {
		switch op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return false, fmt.Errorf("operator %q requires comparable operands of the same type", op)
}

func membership(needle, haystack any) (bool, error) {
	switch hs := haystack.(type) {
	case []any:
		for _, v := range hs {
			if equalValues(needle, v) {
				return true, nil
			}
		}
		return false, nil
	case string:
		s, ok := needle.(string)
		if !ok {
			return false, fmt.Errorf("'in' on string requires a string operand")
		}
		return strings.Contains(hs, s), nil
	case *namespace:
		key, ok := needle.(string)
		if !ok {
			return false, fmt.Errorf("'in' on object requires a string key")
		}
		_, found := hs.data[key]
		return found, nil
	default:
		return false, fmt.Errorf("'in' not supported on this value type")
	}
}

func arithmetic(op string, l, r any) (any, error) {
	if op == "+" {
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs, nil
			}
		}
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %q requires numeric operands", op)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		li, ri := int64(lf), int64(rf)
		return float64(li % ri), nil
	default:
		return nil, fmt.Errorf("unhandled arithmetic operator %q", op)
	}
}
