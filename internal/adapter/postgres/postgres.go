// Package postgres implements the relational adapter for backends with
// native array columns. Filters compile to parameterized WHERE-clause
// fragments; values are never interpolated into SQL text.
//
// Null handling is normalized so the compiled predicates reproduce the
// in-memory adapter's two-valued semantics: comparisons against NULL
// are false, negations of them are true, and a NULL array column
// behaves as the empty array for cardinality tests.
package postgres

import (
	"context"
	"fmt"

	"github.com/roach88/filtergate/internal/adapter"
	"github.com/roach88/filtergate/internal/adapter/sqlfrag"
	"github.com/roach88/filtergate/internal/capability"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// ID is the adapter identity.
const ID = "postgres"

// TrigramThreshold is the similarity floor for the _similar operator.
const TrigramThreshold = 0.3

// Adapter implements adapter.Adapter against Postgres.
type Adapter struct {
	caps *capability.Capabilities
}

// New constructs the adapter from detected features. Use Factory for
// registry wiring with live detection.
func New(features capability.Features, limits capability.Limits) *Adapter {
	caps := capability.New(ID).
		AllowScalars(capability.ComparisonOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindDate).
		AllowScalars(capability.EqualityOps, schema.KindBool, schema.KindEnum).
		AllowScalars(capability.MembershipOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindDate, schema.KindEnum).
		AllowScalars(capability.TextOps, schema.KindString).
		AllowScalars(capability.NullOps,
			schema.KindString, schema.KindInt, schema.KindFloat, schema.KindBool, schema.KindDate, schema.KindEnum, schema.KindGeo, schema.KindJSON).
		AllowArrays(capability.ArrayOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindEnum).
		AllowArrays(capability.NullOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindEnum)
	if features.Trigram {
		caps.Allow(schema.Scalar(schema.KindString), filter.OpSimilar)
	}
	if features.FullText {
		caps.Allow(schema.Scalar(schema.KindString), filter.OpFuzzy)
	}
	if features.Geo {
		caps.Allow(schema.Scalar(schema.KindGeo), filter.OpWithinDistance)
	}
	if features.JSONPath {
		caps.Allow(schema.Scalar(schema.KindJSON), filter.OpJSONPath)
	}
	caps.Features = features
	caps.Limits = limits
	return &Adapter{caps: caps}
}

// Factory returns a registry factory that probes the connection for
// installed extensions before building the capability table.
func Factory(limits capability.Limits) adapter.Factory {
	return func(ctx context.Context, desc adapter.ConnDescriptor) (adapter.Adapter, error) {
		if desc.DB == nil {
			return nil, fmt.Errorf("postgres adapter requires an open connection")
		}
		features, err := capability.DetectPostgresFeatures(ctx, desc.DB)
		if err != nil {
			return nil, err
		}
		return New(features, limits), nil
	}
}

func (a *Adapter) ID() string { return ID }

func (a *Adapter) Capabilities() *capability.Capabilities { return a.caps }

// ApplyOperator compiles one predicate to a SQL fragment. The incoming
// query is ignored: this backend composes fragments.
func (a *Adapter) ApplyOperator(_ adapter.CompiledQuery, field schema.FieldDescriptor, op filter.Operator, value filter.Value, opts adapter.ApplyOptions) (adapter.CompiledQuery, error) {
	col := field.StorageColumn()
	switch op {
	case filter.OpEq:
		if _, isNull := value.(filter.Null); isNull {
			return sqlfrag.New(col + " IS NULL"), nil
		}
		return sqlfrag.New(col+" = ?", filter.Native(value)), nil
	case filter.OpNeq:
		if _, isNull := value.(filter.Null); isNull {
			return sqlfrag.New(col + " IS NOT NULL"), nil
		}
		return sqlfrag.New(col+" IS DISTINCT FROM ?", filter.Native(value)), nil
	case filter.OpGt:
		return sqlfrag.New(col+" > ?", filter.Native(value)), nil
	case filter.OpGte:
		return sqlfrag.New(col+" >= ?", filter.Native(value)), nil
	case filter.OpLt:
		return sqlfrag.New(col+" < ?", filter.Native(value)), nil
	case filter.OpLte:
		return sqlfrag.New(col+" <= ?", filter.Native(value)), nil

	case filter.OpIn, filter.OpNotIn:
		return a.membership(col, op, value)

	case filter.OpContains, filter.OpStartsWith, filter.OpEndsWith:
		return textFragment(col, op, value, opts.Fold)

	case filter.OpIncludes:
		return sqlfrag.New("COALESCE(? = ANY("+col+"), FALSE)", filter.Native(value)), nil
	case filter.OpExcludes:
		return sqlfrag.New("NOT COALESCE(? = ANY("+col+"), FALSE)", filter.Native(value)), nil

	case filter.OpIncludesAll:
		list, err := listOperand(op, value)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			// Every set is a superset of the empty set.
			return sqlfrag.MatchEverything(), nil
		}
		if err := a.checkListLimit(op, len(list)); err != nil {
			return nil, err
		}
		return sqlfrag.New("COALESCE("+col+" @> ?, FALSE)", filter.Native(list)), nil

	case filter.OpIncludesAny:
		list, err := listOperand(op, value)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			// Overlap with the empty set is empty.
			return sqlfrag.MatchNothing(), nil
		}
		if err := a.checkListLimit(op, len(list)); err != nil {
			return nil, err
		}
		return sqlfrag.New("COALESCE("+col+" && ?, FALSE)", filter.Native(list)), nil

	case filter.OpIsEmpty:
		want, ok := value.(filter.Bool)
		if !ok {
			return nil, fmt.Errorf("postgres: _isEmpty expects a boolean operand, got %T", value)
		}
		// NULL arrays count as empty so the two operand values
		// partition the table.
		if want {
			return sqlfrag.New("COALESCE(cardinality(" + col + "), 0) = 0"), nil
		}
		return sqlfrag.New("COALESCE(cardinality(" + col + "), 0) > 0"), nil

	case filter.OpIsNull:
		want, ok := value.(filter.Bool)
		if !ok {
			return nil, fmt.Errorf("postgres: _isNull expects a boolean operand, got %T", value)
		}
		if want {
			return sqlfrag.New(col + " IS NULL"), nil
		}
		return sqlfrag.New(col + " IS NOT NULL"), nil

	case filter.OpSimilar:
		if !a.caps.Features.Trigram {
			return nil, fmt.Errorf("postgres: _similar requires the pg_trgm extension")
		}
		return sqlfrag.New("similarity("+col+", ?) > ?", filter.Native(value), TrigramThreshold), nil

	case filter.OpFuzzy:
		if !a.caps.Features.FullText {
			return nil, fmt.Errorf("postgres: _fuzzy requires full-text search")
		}
		return sqlfrag.New("to_tsvector('simple', "+col+") @@ plainto_tsquery('simple', ?)", filter.Native(value)), nil

	case filter.OpWithinDistance:
		if !a.caps.Features.Geo {
			return nil, fmt.Errorf("postgres: _withinDistance requires the postgis extension")
		}
		args, err := geoOperand(value)
		if err != nil {
			return nil, err
		}
		return sqlfrag.New(
			"ST_DWithin("+col+"::geography, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)",
			args...), nil

	case filter.OpJSONPath:
		if !a.caps.Features.JSONPath {
			return nil, fmt.Errorf("postgres: _jsonPath not available")
		}
		path, ok := value.(filter.String)
		if !ok {
			return nil, fmt.Errorf("postgres: _jsonPath expects a string operand, got %T", value)
		}
		return sqlfrag.New(col+" @@ ?::jsonpath", string(path)), nil

	default:
		return nil, fmt.Errorf("postgres: operator %s not supported", op)
	}
}

func (a *Adapter) CombineAnd(parts []adapter.CompiledQuery) (adapter.CompiledQuery, error) {
	frags, err := castAll(parts)
	if err != nil {
		return nil, err
	}
	return sqlfrag.Combine("AND", frags), nil
}

func (a *Adapter) CombineOr(parts []adapter.CompiledQuery) (adapter.CompiledQuery, error) {
	frags, err := castAll(parts)
	if err != nil {
		return nil, err
	}
	return sqlfrag.Combine("OR", frags), nil
}

func (a *Adapter) Negate(q adapter.CompiledQuery) (adapter.CompiledQuery, error) {
	f, err := sqlfrag.Cast(ID, q)
	if err != nil {
		return nil, err
	}
	return sqlfrag.Negate(f), nil
}

// RenderSelect builds a full plan-ready statement for a compiled
// filter, with $n placeholders.
func RenderSelect(table string, q adapter.CompiledQuery) (string, []any, error) {
	f, err := sqlfrag.Cast(ID, q)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT * FROM " + table + " WHERE " + f.SQL
	return sqlfrag.Numbered(sql), f.Args, nil
}

func (a *Adapter) membership(col string, op filter.Operator, value filter.Value) (adapter.CompiledQuery, error) {
	list, err := listOperand(op, value)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		// Membership in the empty set is false for every row, and
		// _nin is its exact complement.
		if op == filter.OpIn {
			return sqlfrag.MatchNothing(), nil
		}
		return sqlfrag.MatchEverything(), nil
	}
	if err := a.checkListLimit(op, len(list)); err != nil {
		return nil, err
	}
	args := make([]any, len(list))
	for i, elem := range list {
		args[i] = filter.Native(elem)
	}
	if op == filter.OpIn {
		return sqlfrag.New(col+" IN ("+sqlfrag.Placeholders(len(list))+")", args...), nil
	}
	// NULL rows are "not in" any list.
	return sqlfrag.New(col+" IS NULL OR "+col+" NOT IN ("+sqlfrag.Placeholders(len(list))+")", args...), nil
}

func (a *Adapter) checkListLimit(op filter.Operator, n int) error {
	if limit := a.caps.Limits.MaxInItems; limit > 0 && n > limit {
		return fmt.Errorf("postgres: %s list has %d items, limit is %d", op, n, limit)
	}
	return nil
}

func textFragment(col string, op filter.Operator, value filter.Value, fold bool) (adapter.CompiledQuery, error) {
	s, ok := value.(filter.String)
	if !ok {
		return nil, fmt.Errorf("postgres: %s expects a string operand, got %T", op, value)
	}
	pattern := sqlfrag.EscapeLike(string(s))
	switch op {
	case filter.OpContains:
		pattern = "%" + pattern + "%"
	case filter.OpStartsWith:
		pattern = pattern + "%"
	case filter.OpEndsWith:
		pattern = "%" + pattern
	}
	like := "LIKE"
	if fold {
		like = "ILIKE"
	}
	return sqlfrag.New(col+" "+like+" ? ESCAPE '\\'", pattern), nil
}

func listOperand(op filter.Operator, value filter.Value) (filter.Array, error) {
	list, ok := value.(filter.Array)
	if !ok {
		return nil, fmt.Errorf("postgres: %s expects a list operand, got %T", op, value)
	}
	return list, nil
}

func geoOperand(value filter.Value) ([]any, error) {
	arr, ok := value.(filter.Array)
	if !ok || len(arr) != 3 {
		return nil, fmt.Errorf("postgres: _withinDistance expects [lon, lat, meters]")
	}
	out := make([]any, 3)
	for i, elem := range arr {
		n := filter.Native(elem)
		switch n.(type) {
		case int64, float64:
			out[i] = n
		default:
			return nil, fmt.Errorf("postgres: _withinDistance expects numeric elements, got %T", n)
		}
	}
	return out, nil
}

func castAll(parts []adapter.CompiledQuery) ([]sqlfrag.Fragment, error) {
	out := make([]sqlfrag.Fragment, len(parts))
	for i, p := range parts {
		f, err := sqlfrag.Cast(ID, p)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
