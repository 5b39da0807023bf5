package filter

// Expr is a sealed interface over the four filter tree variants:
// And, Or, Not, and Leaf. Trees are pure values with no back-references
// and are never mutated after construction.
type Expr interface {
	filterExpr() // sealed
}

// And is the conjunction of its children.
type And struct {
	Children []Expr
}

func (And) filterExpr() {}

// Or is the disjunction of its children.
type Or struct {
	Children []Expr
}

func (Or) filterExpr() {}

// Not negates its child.
type Not struct {
	Child Expr
}

func (Not) filterExpr() {}

// Leaf applies one or more operator conditions to a single field.
// Multiple conditions on one leaf are implicitly ANDed.
//
// Conditions are kept as a slice sorted by operator symbol rather than
// a map, so that walking a leaf is deterministic and compiling the same
// tree twice yields structurally identical output.
type Leaf struct {
	Field      string
	Conditions []Condition
}

func (Leaf) filterExpr() {}

// Condition is a single operator applied to a value.
type Condition struct {
	Op    Operator
	Value Value
}

// Walk visits every node of the tree depth-first, leaves last within
// each combinator. The visitor must not retain or mutate nodes.
func Walk(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch node := e.(type) {
	case And:
		for _, c := range node.Children {
			Walk(c, visit)
		}
	case Or:
		for _, c := range node.Children {
			Walk(c, visit)
		}
	case Not:
		Walk(node.Child, visit)
	}
}

// Leaves returns every leaf of the tree in walk order.
func Leaves(e Expr) []Leaf {
	var out []Leaf
	Walk(e, func(n Expr) {
		if leaf, ok := n.(Leaf); ok {
			out = append(out, leaf)
		}
	})
	return out
}
