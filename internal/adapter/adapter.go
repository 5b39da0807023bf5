// Package adapter defines the common contract every backend implements
// and the runtime registry that selects one per request.
//
// Adapters translate single filter predicates into their backend's
// native query form and compose translated parts with And/Or/Not
// combinators. The compiled query value is owned entirely by the
// adapter that produced it; the compiler and everything downstream
// treat it as opaque.
package adapter

import (
	"github.com/roach88/filtergate/internal/capability"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// CompiledQuery is an adapter-owned, opaque query value: a SQL fragment
// for relational backends, a request-body node for search backends, a
// predicate function for the in-memory backend. Adapters type-assert
// their own representation and reject foreign values.
type CompiledQuery = any

// ApplyOptions carries per-call knobs for ApplyOperator.
type ApplyOptions struct {
	// Fold requests case-insensitive matching for text operators,
	// where the backend can express it.
	Fold bool
}

// Adapter is the contract shared by all five backends.
//
// ApplyOperator receives the accumulated query for accumulator-style
// backends; fragment-style backends ignore it and receive nil. The
// returned value always replaces the input.
type Adapter interface {
	// ID identifies the backend ("postgres", "sqlite", "mysql",
	// "elasticsearch", "memory").
	ID() string

	// ApplyOperator translates one (field, operator, value) predicate.
	ApplyOperator(q CompiledQuery, field schema.FieldDescriptor, op filter.Operator, value filter.Value, opts ApplyOptions) (CompiledQuery, error)

	// CombineAnd conjoins previously compiled parts.
	CombineAnd(parts []CompiledQuery) (CompiledQuery, error)

	// CombineOr disjoins previously compiled parts.
	CombineOr(parts []CompiledQuery) (CompiledQuery, error)

	// Negate inverts a previously compiled part.
	Negate(q CompiledQuery) (CompiledQuery, error)

	// Capabilities returns the backend's detected capability table.
	Capabilities() *capability.Capabilities
}
