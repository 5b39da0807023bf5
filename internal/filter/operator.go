package filter

import (
	"fmt"
	"slices"
)

// Operator is a closed enumeration of filter operator symbols. The
// string value is the wire symbol as it appears in a parsed filter
// document. New operators are added here and nowhere else; adapters
// switch over this set and the compiler rejects anything unknown, so an
// unhandled symbol is a programming error caught in tests, not a
// runtime surprise.
type Operator string

const (
	// Comparison operators.
	OpEq  Operator = "_eq"
	OpNeq Operator = "_neq"
	OpGt  Operator = "_gt"
	OpGte Operator = "_gte"
	OpLt  Operator = "_lt"
	OpLte Operator = "_lte"

	// Membership operators over scalar fields.
	OpIn    Operator = "_in"
	OpNotIn Operator = "_nin"

	// Plain text operators.
	OpContains   Operator = "_contains"
	OpStartsWith Operator = "_startsWith"
	OpEndsWith   Operator = "_endsWith"

	// Array operators.
	OpIncludes    Operator = "_includes"
	OpExcludes    Operator = "_excludes"
	OpIncludesAll Operator = "_includesAll"
	OpIncludesAny Operator = "_includesAny"
	OpIsEmpty     Operator = "_isEmpty"

	// Null test. Deliberately separate from _isEmpty: emptiness is a
	// cardinality-zero test on a present array, null-ness is absence.
	OpIsNull Operator = "_isNull"

	// Advanced operators, exposed only when the backend detects the
	// corresponding feature or extension at runtime.
	OpSimilar        Operator = "_similar"        // trigram similarity
	OpFuzzy          Operator = "_fuzzy"          // fuzzy full-text match
	OpWithinDistance Operator = "_withinDistance" // geospatial distance
	OpJSONPath       Operator = "_jsonPath"       // full JSON-path predicate
)

// Category groups operators for capability lookups. A backend declares
// support per (category, field kind) pair rather than per operator,
// with feature flags gating the advanced category member by member.
type Category string

const (
	CategoryComparison Category = "comparison"
	CategoryMembership Category = "membership"
	CategoryText       Category = "text"
	CategoryArray      Category = "array"
	CategoryNull       Category = "null"
	CategoryAdvanced   Category = "advanced"
)

// operatorCategories is the single source of truth for the known
// operator set. Parse rejects symbols absent from this table.
var operatorCategories = map[Operator]Category{
	OpEq:  CategoryComparison,
	OpNeq: CategoryComparison,
	OpGt:  CategoryComparison,
	OpGte: CategoryComparison,
	OpLt:  CategoryComparison,
	OpLte: CategoryComparison,

	OpIn:    CategoryMembership,
	OpNotIn: CategoryMembership,

	OpContains:   CategoryText,
	OpStartsWith: CategoryText,
	OpEndsWith:   CategoryText,

	OpIncludes:    CategoryArray,
	OpExcludes:    CategoryArray,
	OpIncludesAll: CategoryArray,
	OpIncludesAny: CategoryArray,
	OpIsEmpty:     CategoryArray,

	OpIsNull: CategoryNull,

	OpSimilar:        CategoryAdvanced,
	OpFuzzy:          CategoryAdvanced,
	OpWithinDistance: CategoryAdvanced,
	OpJSONPath:       CategoryAdvanced,
}

// Known reports whether the symbol is a recognized operator.
func Known(op Operator) bool {
	_, ok := operatorCategories[op]
	return ok
}

// CategoryOf returns the category of a known operator.
func CategoryOf(op Operator) (Category, error) {
	cat, ok := operatorCategories[op]
	if !ok {
		return "", fmt.Errorf("unknown operator symbol %q", op)
	}
	return cat, nil
}

// Operators returns every known operator in a fixed, sorted order.
// Used by capability tables and the CLI capability listing.
func Operators() []Operator {
	out := make([]Operator, 0, len(operatorCategories))
	for op := range operatorCategories {
		out = append(out, op)
	}
	slices.Sort(out)
	return out
}
