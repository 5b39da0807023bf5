// Package mysql implements the relational adapter for MySQL 8, where
// array fields are JSON columns queried through JSON_CONTAINS and
// JSON_OVERLAPS. Unlike sqlite's json_each expansion, JSON_CONTAINS
// with an array candidate is a direct superset test, so this backend
// keeps the full array operator set.
package mysql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/filtergate/internal/adapter"
	"github.com/roach88/filtergate/internal/adapter/sqlfrag"
	"github.com/roach88/filtergate/internal/capability"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// ID is the adapter identity.
const ID = "mysql"

// Adapter implements adapter.Adapter against MySQL.
type Adapter struct {
	caps *capability.Capabilities
}

// New constructs the adapter. MySQL 8 always ships the JSON functions,
// so the capability table is static apart from limits.
func New(limits capability.Limits) *Adapter {
	caps := capability.New(ID).
		AllowScalars(capability.ComparisonOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindDate).
		AllowScalars(capability.EqualityOps, schema.KindBool, schema.KindEnum).
		AllowScalars(capability.MembershipOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindDate, schema.KindEnum).
		AllowScalars(capability.TextOps, schema.KindString).
		AllowScalars(capability.NullOps,
			schema.KindString, schema.KindInt, schema.KindFloat, schema.KindBool, schema.KindDate, schema.KindEnum).
		AllowArrays(capability.ArrayOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindEnum).
		AllowArrays(capability.NullOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindEnum)
	caps.Features = capability.Features{Explain: true, JSONPath: true}
	caps.Limits = limits
	return &Adapter{caps: caps}
}

// Factory adapts New to the registry's factory signature.
func Factory(limits capability.Limits) adapter.Factory {
	return func(_ context.Context, _ adapter.ConnDescriptor) (adapter.Adapter, error) {
		return New(limits), nil
	}
}

func (a *Adapter) ID() string { return ID }

func (a *Adapter) Capabilities() *capability.Capabilities { return a.caps }

// ApplyOperator compiles one predicate to a SQL fragment.
func (a *Adapter) ApplyOperator(_ adapter.CompiledQuery, field schema.FieldDescriptor, op filter.Operator, value filter.Value, opts adapter.ApplyOptions) (adapter.CompiledQuery, error) {
	col := field.StorageColumn()
	switch op {
	case filter.OpEq:
		if _, isNull := value.(filter.Null); isNull {
			return sqlfrag.New(col + " IS NULL"), nil
		}
		return sqlfrag.New(col+" = ?", filter.Native(value)), nil
	case filter.OpNeq:
		// <=> is MySQL's null-safe equality; its negation matches
		// NULL rows like the in-memory complement does.
		return sqlfrag.New("NOT ("+col+" <=> ?)", filter.Native(value)), nil
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
		cand, arg, err := jsonCandidate(value)
		if err != nil {
			return nil, err
		}
		return sqlfrag.New("COALESCE(JSON_CONTAINS("+col+", "+cand+"), 0) = 1", arg), nil
	case filter.OpExcludes:
		cand, arg, err := jsonCandidate(value)
		if err != nil {
			return nil, err
		}
		return sqlfrag.New("COALESCE(JSON_CONTAINS("+col+", "+cand+"), 0) = 0", arg), nil

	case filter.OpIncludesAny:
		list, ok := value.(filter.Array)
		if !ok {
			return nil, fmt.Errorf("mysql: %s expects a list operand, got %T", op, value)
		}
		if len(list) == 0 {
			return sqlfrag.MatchNothing(), nil
		}
		if err := a.checkListLimit(op, len(list)); err != nil {
			return nil, err
		}
		doc, err := jsonDocument(list)
		if err != nil {
			return nil, err
		}
		return sqlfrag.New("COALESCE(JSON_OVERLAPS("+col+", ?), 0) = 1", doc), nil

	case filter.OpIncludesAll:
		list, ok := value.(filter.Array)
		if !ok {
			return nil, fmt.Errorf("mysql: %s expects a list operand, got %T", op, value)
		}
		if len(list) == 0 {
			// Every set is a superset of the empty set.
			return sqlfrag.MatchEverything(), nil
		}
		if err := a.checkListLimit(op, len(list)); err != nil {
			return nil, err
		}
		doc, err := jsonDocument(list)
		if err != nil {
			return nil, err
		}
		return sqlfrag.New("COALESCE(JSON_CONTAINS("+col+", ?), 0) = 1", doc), nil

	case filter.OpIsEmpty:
		want, ok := value.(filter.Bool)
		if !ok {
			return nil, fmt.Errorf("mysql: _isEmpty expects a boolean operand, got %T", value)
		}
		if want {
			return sqlfrag.New("COALESCE(JSON_LENGTH(" + col + "), 0) = 0"), nil
		}
		return sqlfrag.New("COALESCE(JSON_LENGTH(" + col + "), 0) > 0"), nil

	case filter.OpIsNull:
		want, ok := value.(filter.Bool)
		if !ok {
			return nil, fmt.Errorf("mysql: _isNull expects a boolean operand, got %T", value)
		}
		if want {
			return sqlfrag.New(col + " IS NULL"), nil
		}
		return sqlfrag.New(col + " IS NOT NULL"), nil

	default:
		return nil, fmt.Errorf("mysql: operator %s not supported", op)
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
// filter, with ? placeholders.
func RenderSelect(table string, q adapter.CompiledQuery) (string, []any, error) {
	f, err := sqlfrag.Cast(ID, q)
	if err != nil {
		return "", nil, err
	}
	return "SELECT * FROM " + table + " WHERE " + f.SQL, f.Args, nil
}

func (a *Adapter) membership(col string, op filter.Operator, value filter.Value) (adapter.CompiledQuery, error) {
	list, ok := value.(filter.Array)
	if !ok {
		return nil, fmt.Errorf("mysql: %s expects a list operand, got %T", op, value)
	}
	if len(list) == 0 {
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
	return sqlfrag.New(col+" IS NULL OR "+col+" NOT IN ("+sqlfrag.Placeholders(len(list))+")", args...), nil
}

func (a *Adapter) checkListLimit(op filter.Operator, n int) error {
	if limit := a.caps.Limits.MaxInItems; limit > 0 && n > limit {
		return fmt.Errorf("mysql: %s list has %d items, limit is %d", op, n, limit)
	}
	return nil
}

func textFragment(col string, op filter.Operator, value filter.Value, fold bool) (adapter.CompiledQuery, error) {
	s, ok := value.(filter.String)
	if !ok {
		return nil, fmt.Errorf("mysql: %s expects a string operand, got %T", op, value)
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
	// Collations usually fold case already; BINARY forces an exact
	// match for the case-sensitive path.
	if fold {
		return sqlfrag.New(col+" LIKE ? ESCAPE '\\\\'", pattern), nil
	}
	return sqlfrag.New(col+" LIKE BINARY ? ESCAPE '\\\\'", pattern), nil
}

// jsonCandidate renders a scalar as a JSON_CONTAINS candidate
// expression plus its parameter.
func jsonCandidate(value filter.Value) (string, any, error) {
	switch value.(type) {
	case filter.String:
		return "JSON_QUOTE(?)", filter.Native(value), nil
	case filter.Int, filter.Float, filter.Bool:
		return "CAST(? AS JSON)", filter.Native(value), nil
	default:
		return "", nil, fmt.Errorf("mysql: unsupported array element operand %T", value)
	}
}

// jsonDocument serializes a list operand to a JSON array literal
// passed as one parameter.
func jsonDocument(list filter.Array) (string, error) {
	doc, err := json.Marshal(filter.Native(list))
	if err != nil {
		return "", fmt.Errorf("mysql: encode list operand: %w", err)
	}
	return string(doc), nil
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
