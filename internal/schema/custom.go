package schema

import (
	"fmt"

	"github.com/roach88/filtergate/internal/filter"
)

// CustomFilterFunc is the escape hatch for fields whose filtering
// cannot be expressed as a storage predicate. The function receives the
// adapter's opaque compiled-query value (nil for adapters that build
// fragments from scratch), the operator, and the raw operand, and must
// return a value of the active adapter's compiled-query type. The
// compiler treats the result opaquely and hands it straight to the
// adapter's combinators.
//
// Registration is by field name, against an explicit registry owned by
// the caller, not a package-level table.
type CustomFilterFunc func(query any, op filter.Operator, value filter.Value) (any, error)

// CustomRegistry maps field names to their registered filter functions.
type CustomRegistry struct {
	funcs map[string]CustomFilterFunc
}

// NewCustomRegistry creates an empty registry.
func NewCustomRegistry() *CustomRegistry {
	return &CustomRegistry{funcs: make(map[string]CustomFilterFunc)}
}

// Register binds a function to a field name. Re-registering a name is
// an error: silently replacing a custom filter is how two entities end
// up disagreeing about what a field means.
func (r *CustomRegistry) Register(field string, fn CustomFilterFunc) error {
	if fn == nil {
		return fmt.Errorf("custom filter for %q is nil", field)
	}
	if _, exists := r.funcs[field]; exists {
		return fmt.Errorf("custom filter for %q already registered", field)
	}
	r.funcs[field] = fn
	return nil
}

// Lookup returns the function registered for a field, if any.
func (r *CustomRegistry) Lookup(field string) (CustomFilterFunc, bool) {
	if r == nil {
		return nil, false
	}
	fn, ok := r.funcs[field]
	return fn, ok
}
