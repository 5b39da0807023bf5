// Package capability describes what each backend can do: which
// operators it supports per field kind, which optional features it
// exposes, and its numeric limits. Capabilities are computed once per
// connection (some features are detected at runtime from installed
// extensions), cached, and invalidated only by explicit re-detection.
package capability

import (
	"slices"

	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// Features is the optional-feature map of a backend. Static entries
// come from the adapter itself; Trigram, Geo, FullText and JSONPath may
// flip at detection time depending on installed extensions.
type Features struct {
	NativeArrays bool `json:"native_arrays"`
	FullText     bool `json:"full_text"`
	Trigram      bool `json:"trigram"`
	Geo          bool `json:"geo"`
	JSONPath     bool `json:"json_path"`
	Explain      bool `json:"explain"`
}

// Limits holds numeric backend limits. Zero means unlimited.
type Limits struct {
	// MaxInItems caps the length of a membership list (_in, _nin,
	// _includesAny, _includesAll).
	MaxInItems int `json:"max_in_items"`
}

// Capabilities is one backend's operator support table plus features
// and limits. Build it with New and the Allow methods at adapter
// construction time; treat it as read-only afterwards.
type Capabilities struct {
	AdapterID string
	Features  Features
	Limits    Limits

	ops map[opKindKey]struct{}
}

// opKindKey keys operator support by (operator, kind class).
type opKindKey struct {
	op   filter.Operator
	kind string
}

// kindClass collapses a FieldKind into the class capability tables key
// on: the scalar kind name, prefixed for arrays. Enum fields share one
// class regardless of which enum they reference.
func kindClass(k schema.FieldKind) string {
	if k.Array {
		return "array:" + string(k.Scalar)
	}
	return string(k.Scalar)
}

// New creates an empty capability table for an adapter.
func New(adapterID string) *Capabilities {
	return &Capabilities{
		AdapterID: adapterID,
		ops:       make(map[opKindKey]struct{}),
	}
}

// Allow marks the operators as supported for one field kind.
func (c *Capabilities) Allow(kind schema.FieldKind, ops ...filter.Operator) *Capabilities {
	class := kindClass(kind)
	for _, op := range ops {
		c.ops[opKindKey{op: op, kind: class}] = struct{}{}
	}
	return c
}

// AllowScalars marks the operators as supported for several non-array
// scalar kinds at once.
func (c *Capabilities) AllowScalars(ops []filter.Operator, scalars ...schema.ScalarKind) *Capabilities {
	for _, s := range scalars {
		c.Allow(schema.Scalar(s), ops...)
	}
	return c
}

// AllowArrays marks the operators as supported for array fields with
// the given element kinds.
func (c *Capabilities) AllowArrays(ops []filter.Operator, elems ...schema.ScalarKind) *Capabilities {
	for _, s := range elems {
		c.Allow(schema.ArrayOf(s), ops...)
	}
	return c
}

// Supports reports whether the operator is available for the kind.
func (c *Capabilities) Supports(op filter.Operator, kind schema.FieldKind) bool {
	_, ok := c.ops[opKindKey{op: op, kind: kindClass(kind)}]
	return ok
}

// SupportedOperators lists the supported operators of one category for
// a field kind, in sorted order.
func (c *Capabilities) SupportedOperators(cat filter.Category, kind schema.FieldKind) []filter.Operator {
	var out []filter.Operator
	for _, op := range filter.Operators() {
		opCat, err := filter.CategoryOf(op)
		if err != nil || opCat != cat {
			continue
		}
		if c.Supports(op, kind) {
			out = append(out, op)
		}
	}
	slices.Sort(out)
	return out
}

// Comparison, membership, text and array operator groups, shared by the
// adapter capability declarations.
var (
	ComparisonOps = []filter.Operator{filter.OpEq, filter.OpNeq, filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte}
	EqualityOps   = []filter.Operator{filter.OpEq, filter.OpNeq}
	MembershipOps = []filter.Operator{filter.OpIn, filter.OpNotIn}
	TextOps       = []filter.Operator{filter.OpContains, filter.OpStartsWith, filter.OpEndsWith}
	ArrayOps      = []filter.Operator{filter.OpIncludes, filter.OpExcludes, filter.OpIncludesAll, filter.OpIncludesAny, filter.OpIsEmpty}
	// ArrayOpsNoAll is for JSON-array relational backends that cannot
	// express the superset test.
	ArrayOpsNoAll = []filter.Operator{filter.OpIncludes, filter.OpExcludes, filter.OpIncludesAny, filter.OpIsEmpty}
	NullOps       = []filter.Operator{filter.OpIsNull}
)
