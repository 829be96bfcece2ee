package expr

// Node is the restricted AST. Every concrete type below is the complete
// set of expression shapes a rule may use; there is deliberately no
// "call" node, no "loop" node, and no "import" node.
type Node interface {
	isNode()
}

// Ident is a bare identifier: a top-level environment variable name
// (data, settings, all_findings) or — as the left side of a Field — the
// start of a dotted access path.
type Ident struct{ Name string }

// Field is null-safe dotted field access, e.g. data.hit_ratio; bracket
// access (data["hit_ratio"]) does not parse. Target is the expression
// being accessed; Name is
// the field being read off it. A missing field evaluates to nil rather
// than raising.
type Field struct {
	Target Node
	Name   string
}

// Literal is a number, string, or boolean constant.
type Literal struct{ Value any }

// Unary is logical negation: !expr.
type Unary struct {
	Op   string
	Expr Node
}

// Binary covers comparison (==, !=, >, >=, <, <=), arithmetic
// (+, -, *, /, %), boolean (&&, ||), and membership (in) operators.
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

func (Ident) isNode()   {}
func (Field) isNode()   {}
func (Literal) isNode() {}
func (Unary) isNode()   {}
func (Binary) isNode()  {}
