// Package sqlite implements the relational adapter for backends that
// store arrays as JSON text columns. Membership tests expand through
// json_each; the superset test (_includesAll) is deliberately absent
// from the capability table because this family cannot express it.
package sqlite

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
const ID = "sqlite"

// Adapter implements adapter.Adapter against SQLite.
type Adapter struct {
	caps *capability.Capabilities
}

// New constructs the adapter from detected features. Array operators
// require the JSON1 extension.
func New(features capability.Features, limits capability.Limits) *Adapter {
	caps := capability.New(ID).
		AllowScalars(capability.ComparisonOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindDate).
		AllowScalars(capability.EqualityOps, schema.KindBool, schema.KindEnum).
		AllowScalars(capability.MembershipOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindDate, schema.KindEnum).
		AllowScalars(capability.TextOps, schema.KindString).
		AllowScalars(capability.NullOps,
			schema.KindString, schema.KindInt, schema.KindFloat, schema.KindBool, schema.KindDate, schema.KindEnum)
	if features.JSONPath {
		caps.AllowArrays(capability.ArrayOpsNoAll, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindEnum).
			AllowArrays(capability.NullOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindEnum)
	}
	caps.Features = features
	caps.Limits = limits
	return &Adapter{caps: caps}
}

// Factory returns a registry factory that probes the connection for
// JSON1 before building the capability table.
func Factory(limits capability.Limits) adapter.Factory {
	return func(ctx context.Context, desc adapter.ConnDescriptor) (adapter.Adapter, error) {
		if desc.DB == nil {
			return nil, fmt.Errorf("sqlite adapter requires an open connection")
		}
		features, err := capability.DetectSQLiteFeatures(ctx, desc.DB)
		if err != nil {
			return nil, err
		}
		return New(features, limits), nil
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
		// IS NOT gives distinct-from semantics: NULL rows differ from
		// every value, matching the in-memory complement.
		return sqlfrag.New(col+" IS NOT ?", filter.Native(value)), nil
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
		return sqlfrag.New(
			col+" IS NOT NULL AND EXISTS (SELECT 1 FROM json_each("+col+") WHERE json_each.value = ?)",
			filter.Native(value)), nil
	case filter.OpExcludes:
		return sqlfrag.New(
			col+" IS NULL OR NOT EXISTS (SELECT 1 FROM json_each("+col+") WHERE json_each.value = ?)",
			filter.Native(value)), nil

	case filter.OpIncludesAny:
		list, ok := value.(filter.Array)
		if !ok {
			return nil, fmt.Errorf("sqlite: %s expects a list operand, got %T", op, value)
		}
		if len(list) == 0 {
			return sqlfrag.MatchNothing(), nil
		}
		if err := a.checkListLimit(op, len(list)); err != nil {
			return nil, err
		}
		args := make([]any, len(list))
		for i, elem := range list {
			args[i] = filter.Native(elem)
		}
		return sqlfrag.New(
			col+" IS NOT NULL AND EXISTS (SELECT 1 FROM json_each("+col+") WHERE json_each.value IN ("+sqlfrag.Placeholders(len(list))+"))",
			args...), nil

	case filter.OpIncludesAll:
		// Not expressible over JSON text arrays; kept out of the
		// capability table so the compiler rejects it before dispatch.
		return nil, fmt.Errorf("sqlite: operator %s not supported for JSON arrays", op)

	case filter.OpIsEmpty:
		want, ok := value.(filter.Bool)
		if !ok {
			return nil, fmt.Errorf("sqlite: _isEmpty expects a boolean operand, got %T", value)
		}
		if want {
			return sqlfrag.New(col + " IS NULL OR json_array_length(" + col + ") = 0"), nil
		}
		return sqlfrag.New(col + " IS NOT NULL AND json_array_length(" + col + ") > 0"), nil

	case filter.OpIsNull:
		want, ok := value.(filter.Bool)
		if !ok {
			return nil, fmt.Errorf("sqlite: _isNull expects a boolean operand, got %T", value)
		}
		if want {
			return sqlfrag.New(col + " IS NULL"), nil
		}
		return sqlfrag.New(col + " IS NOT NULL"), nil

	default:
		return nil, fmt.Errorf("sqlite: operator %s not supported", op)
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
		return nil, fmt.Errorf("sqlite: %s expects a list operand, got %T", op, value)
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
		return fmt.Errorf("sqlite: %s list has %d items, limit is %d", op, n, limit)
	}
	return nil
}

// textFragment avoids LIKE for the case-sensitive path: SQLite's LIKE
// folds ASCII case by default, so exact matching goes through instr
// and substr instead.
func textFragment(col string, op filter.Operator, value filter.Value, fold bool) (adapter.CompiledQuery, error) {
	s, ok := value.(filter.String)
	if !ok {
		return nil, fmt.Errorf("sqlite: %s expects a string operand, got %T", op, value)
	}
	needle := string(s)

	if fold {
		pattern := sqlfrag.EscapeLike(needle)
		switch op {
		case filter.OpContains:
			pattern = "%" + pattern + "%"
		case filter.OpStartsWith:
			pattern = pattern + "%"
		case filter.OpEndsWith:
			pattern = "%" + pattern
		}
		return sqlfrag.New(col+" LIKE ? ESCAPE '\\'", pattern), nil
	}

	switch op {
	case filter.OpContains:
		return sqlfrag.New("instr("+col+", ?) > 0", needle), nil
	case filter.OpStartsWith:
		return sqlfrag.New("substr("+col+", 1, length(?)) = ?", needle, needle), nil
	case filter.OpEndsWith:
		if needle == "" {
			// substr(col, -length('')) reads from offset 0 and never
			// equals ''. Every string ends with the empty suffix, so
			// only null rows are excluded.
			return sqlfrag.New(col + " IS NOT NULL"), nil
		}
		return sqlfrag.New("substr("+col+", -length(?)) = ?", needle, needle), nil
	default:
		return nil, fmt.Errorf("sqlite: operator %s is not a text operator", op)
	}
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
