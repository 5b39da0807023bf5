// Package memory implements the in-memory backend: filters compile to
// predicate functions evaluated directly over struct-like rows.
//
// This adapter is the deliberate fallback when no storage connector is
// present, and doubles as the behavioral reference for cross-backend
// equivalence: its operator semantics define what the SQL and search
// adapters must reproduce.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/filtergate/internal/adapter"
	"github.com/roach88/filtergate/internal/capability"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// ID is the adapter identity.
const ID = "memory"

// Row is one in-memory record, keyed by field name with native Go
// values (string, int64/float64, bool, []any, nil).
type Row map[string]any

// Query is the adapter's compiled form: a pure predicate over rows.
type Query struct {
	Match func(Row) bool
}

// Adapter implements adapter.Adapter for in-memory rows.
type Adapter struct {
	caps *capability.Capabilities
}

// New constructs the memory adapter. No detection is needed; the
// capability table is fully static.
func New() *Adapter {
	caps := capability.New(ID).
		AllowScalars(capability.ComparisonOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindDate).
		AllowScalars(capability.EqualityOps, schema.KindBool, schema.KindEnum).
		AllowScalars(capability.MembershipOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindDate, schema.KindEnum).
		AllowScalars(capability.TextOps, schema.KindString).
		AllowScalars(capability.NullOps,
			schema.KindString, schema.KindInt, schema.KindFloat, schema.KindBool, schema.KindDate, schema.KindEnum).
		AllowArrays(capability.ArrayOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindEnum).
		AllowArrays(capability.NullOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindEnum)
	return &Adapter{caps: caps}
}

// Factory adapts New to the registry's factory signature.
func Factory() adapter.Factory {
	return func(_ context.Context, _ adapter.ConnDescriptor) (adapter.Adapter, error) {
		return New(), nil
	}
}

func (a *Adapter) ID() string { return ID }

func (a *Adapter) Capabilities() *capability.Capabilities { return a.caps }

// ApplyOperator compiles one predicate to a matching function. The
// incoming query is ignored: this backend composes fragments.
func (a *Adapter) ApplyOperator(_ adapter.CompiledQuery, field schema.FieldDescriptor, op filter.Operator, value filter.Value, opts adapter.ApplyOptions) (adapter.CompiledQuery, error) {
	name := field.Name
	switch op {
	case filter.OpEq:
		return pred(func(r Row) bool { return equalAt(r, name, value) }), nil
	case filter.OpNeq:
		return pred(func(r Row) bool { return !equalAt(r, name, value) }), nil
	case filter.OpGt:
		return comparePred(name, value, func(c int) bool { return c > 0 }), nil
	case filter.OpGte:
		return comparePred(name, value, func(c int) bool { return c >= 0 }), nil
	case filter.OpLt:
		return comparePred(name, value, func(c int) bool { return c < 0 }), nil
	case filter.OpLte:
		return comparePred(name, value, func(c int) bool { return c <= 0 }), nil

	case filter.OpIn, filter.OpNotIn:
		list, ok := value.(filter.Array)
		if !ok {
			return nil, fmt.Errorf("memory: %s expects a list operand, got %T", op, value)
		}
		// An empty _in list matches nothing: membership in the empty
		// set is false for every row. _nin is its exact complement.
		in := func(r Row) bool {
			for _, elem := range list {
				if equalAt(r, name, elem) {
					return true
				}
			}
			return false
		}
		if op == filter.OpIn {
			return pred(in), nil
		}
		return pred(func(r Row) bool { return !in(r) }), nil

	case filter.OpContains, filter.OpStartsWith, filter.OpEndsWith:
		needle, ok := value.(filter.String)
		if !ok {
			return nil, fmt.Errorf("memory: %s expects a string operand, got %T", op, value)
		}
		return textPred(name, op, string(needle), opts.Fold), nil

	case filter.OpIncludes:
		return arrayPred(name, func(elems []filter.Value) bool { return containsValue(elems, value) }), nil
	case filter.OpExcludes:
		return arrayPred(name, func(elems []filter.Value) bool { return !containsValue(elems, value) }), nil

	case filter.OpIncludesAll:
		want, ok := value.(filter.Array)
		if !ok {
			return nil, fmt.Errorf("memory: %s expects a list operand, got %T", op, value)
		}
		// Empty list: every set is a superset of the empty set, so
		// this matches everything.
		return arrayPred(name, func(elems []filter.Value) bool {
			for _, w := range want {
				if !containsValue(elems, w) {
					return false
				}
			}
			return true
		}), nil

	case filter.OpIncludesAny:
		want, ok := value.(filter.Array)
		if !ok {
			return nil, fmt.Errorf("memory: %s expects a list operand, got %T", op, value)
		}
		// Empty list: overlap with the empty set is empty, matches
		// nothing.
		return arrayPred(name, func(elems []filter.Value) bool {
			for _, w := range want {
				if containsValue(elems, w) {
					return true
				}
			}
			return false
		}), nil

	case filter.OpIsEmpty:
		want, ok := value.(filter.Bool)
		if !ok {
			return nil, fmt.Errorf("memory: _isEmpty expects a boolean operand, got %T", value)
		}
		// A null or missing array has cardinality zero and counts as
		// empty; the two operand values exactly partition any dataset.
		return pred(func(r Row) bool {
			elems, _ := arrayAt(r, name)
			return (len(elems) == 0) == bool(want)
		}), nil

	case filter.OpIsNull:
		want, ok := value.(filter.Bool)
		if !ok {
			return nil, fmt.Errorf("memory: _isNull expects a boolean operand, got %T", value)
		}
		return pred(func(r Row) bool {
			raw, present := r[name]
			isNull := !present || raw == nil
			return isNull == bool(want)
		}), nil

	default:
		return nil, fmt.Errorf("memory: operator %s not supported", op)
	}
}

// CombineAnd conjoins predicates. An empty conjunction is vacuously
// true.
func (a *Adapter) CombineAnd(parts []adapter.CompiledQuery) (adapter.CompiledQuery, error) {
	preds, err := castAll(parts)
	if err != nil {
		return nil, err
	}
	return pred(func(r Row) bool {
		for _, p := range preds {
			if !p.Match(r) {
				return false
			}
		}
		return true
	}), nil
}

// CombineOr disjoins predicates. An empty disjunction matches nothing.
func (a *Adapter) CombineOr(parts []adapter.CompiledQuery) (adapter.CompiledQuery, error) {
	preds, err := castAll(parts)
	if err != nil {
		return nil, err
	}
	return pred(func(r Row) bool {
		for _, p := range preds {
			if p.Match(r) {
				return true
			}
		}
		return false
	}), nil
}

// Negate complements a predicate.
func (a *Adapter) Negate(q adapter.CompiledQuery) (adapter.CompiledQuery, error) {
	inner, err := cast(q)
	if err != nil {
		return nil, err
	}
	return pred(func(r Row) bool { return !inner.Match(r) }), nil
}

// Filter executes a compiled query over a dataset, preserving order.
func Filter(rows []Row, q adapter.CompiledQuery) ([]Row, error) {
	inner, err := cast(q)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, r := range rows {
		if inner.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func pred(fn func(Row) bool) Query {
	return Query{Match: fn}
}

func cast(q adapter.CompiledQuery) (Query, error) {
	inner, ok := q.(Query)
	if !ok {
		return Query{}, fmt.Errorf("memory: compiled query is %T, not a memory predicate", q)
	}
	return inner, nil
}

func castAll(parts []adapter.CompiledQuery) ([]Query, error) {
	out := make([]Query, len(parts))
	for i, p := range parts {
		q, err := cast(p)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

// valueAt reads and converts a row field. Missing and nil both read as
// Null.
func valueAt(r Row, name string) (filter.Value, bool) {
	raw, present := r[name]
	if !present || raw == nil {
		return filter.Null{}, false
	}
	v, err := filter.FromJSON(raw)
	if err != nil {
		return nil, false
	}
	return v, true
}

func equalAt(r Row, name string, want filter.Value) bool {
	got, ok := valueAt(r, name)
	if !ok {
		if got == nil {
			// Unconvertible row value never matches.
			return false
		}
		_, wantNull := want.(filter.Null)
		return wantNull
	}
	return filter.Equal(got, want)
}

func comparePred(name string, want filter.Value, accept func(int) bool) Query {
	return pred(func(r Row) bool {
		got, ok := valueAt(r, name)
		if !ok {
			return false
		}
		c, err := filter.Compare(got, want)
		if err != nil {
			return false
		}
		return accept(c)
	})
}

func textPred(name string, op filter.Operator, needle string, fold bool) Query {
	return pred(func(r Row) bool {
		got, ok := valueAt(r, name)
		if !ok {
			return false
		}
		s, isStr := got.(filter.String)
		if !isStr {
			return false
		}
		haystack := string(s)
		n := needle
		if fold {
			haystack = strings.ToLower(haystack)
			n = strings.ToLower(n)
		}
		switch op {
		case filter.OpContains:
			return strings.Contains(haystack, n)
		case filter.OpStartsWith:
			return strings.HasPrefix(haystack, n)
		case filter.OpEndsWith:
			return strings.HasSuffix(haystack, n)
		default:
			return false
		}
	})
}

// arrayAt reads a row's array field. Null and missing read as the
// empty array.
func arrayAt(r Row, name string) ([]filter.Value, bool) {
	v, present := valueAt(r, name)
	if !present {
		return nil, false
	}
	arr, ok := v.(filter.Array)
	if !ok {
		return nil, false
	}
	return arr, true
}

func arrayPred(name string, accept func([]filter.Value) bool) Query {
	return pred(func(r Row) bool {
		elems, _ := arrayAt(r, name)
		return accept(elems)
	})
}

func containsValue(elems []filter.Value, want filter.Value) bool {
	for _, e := range elems {
		if filter.Equal(e, want) {
			return true
		}
	}
	return false
}
