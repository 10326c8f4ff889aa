package sandbox

import (
	"fmt"
	"os"
	"strings"
)

// helperFuncs is the fixed whitelist of functions an ensure expression
// may call (spec.md §4.2). file_exists and file_contains read from the
// host filesystem relative to the process working directory — the
// executor already has filesystem access, so this only lets the
// enforcer check what the executor claims to have produced.
var helperFuncs = map[string]func(args []any) (any, error){
	"file_exists":   helperFileExists,
	"file_contains": helperFileContains,
	"len":           helperLen,
	"int":           helperInt,
}

func helperFileExists(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("file_exists() takes exactly one argument")
	}
	path, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("file_exists() argument must be a string path")
	}
	_, err := os.Stat(path)
	return err == nil, nil
}

func helperFileContains(args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("file_contains() takes exactly two arguments")
	}
	path, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("file_contains() first argument must be a string path")
	}
	substr, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("file_contains() second argument must be a string")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, nil
	}
	return strings.Contains(string(data), substr), nil
}

func helperLen(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len() takes exactly one argument")
	}
	switch v := args[0].(type) {
	case string:
		return float64(len(v)), nil
	case []any:
		return float64(len(v)), nil
	case *namespace:
		return float64(len(v.data)), nil
	default:
		return nil, fmt.Errorf("len() unsupported on this value type")
	}
}

func helperInt(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("int() takes exactly one argument")
	}
	f, ok := toFloat(args[0])
	if ok {
		return float64(int64(f)), nil
	}
	if s, ok := args[0].(string); ok {
		var n int64
		if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
			return float64(n), nil
		}
		return nil, fmt.Errorf("int(): cannot convert %q", s)
	}
	return nil, fmt.Errorf("int(): unsupported value type")
}
