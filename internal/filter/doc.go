// Package filter defines the filter expression model: an immutable,
// acyclic tree of logical combinators (And/Or/Not) over per-field
// operator conditions.
//
// The package establishes structural validity only: a well-formed tree
// built from known combinator keys and known operator symbols. It makes
// no backend decisions. Authorization and capability validation happen
// later, in the compile package, against a concrete adapter.
//
// Expressions are pure values. Once Parse returns a tree, nothing in
// this module mutates it; compilers walk it read-only.
package filter
