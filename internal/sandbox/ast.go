package sandbox

// node is one element of a postcondition expression's AST. Only the
// concrete types below are ever produced by parse — there is no escape
// hatch to arbitrary Go values or code.
type node interface{}

type literalNode struct{ value any }

type nameNode struct{ name string }

type unaryNode struct {
	op string // "-" or "not"
	x  node
}

type binaryNode struct {
	op   string
	l, r node
}

type attrNode struct {
	x    node
	name string
}

type indexNode struct {
	x, i node
}

type callNode struct {
	name string
	args []node
}

// whitelistedCalls is the fixed set of functions an ensure expression
// may invoke. Nothing outside this set, and no way to reach arbitrary
// host functions, is reachable from the grammar.
var whitelistedCalls = map[string]bool{
	"file_exists":   true,
	"file_contains": true,
	"len":           true,
	"int":           true,
}
