// Package elastic implements the search-engine adapter. Filters
// compile to Elasticsearch bool-query nodes (term, terms, range,
// prefix, wildcard, exists) ready to embed in a search request body.
//
// Two index-model facts shape the semantics here: every field is
// natively multi-valued, so array operators are ordinary term queries;
// and an empty array is indexed as an absent field, so emptiness and
// existence coincide. The latter is why _isNull is only offered for
// scalar fields: on array fields the engine cannot tell null from [].
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/filtergate/internal/adapter"
	"github.com/roach88/filtergate/internal/capability"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// ID is the adapter identity.
const ID = "elasticsearch"

// Node is one query node of the request body. The adapter composes
// nodes with bool queries; RenderBody wraps the root in {"query": ...}.
type Node map[string]any

// Adapter implements adapter.Adapter against Elasticsearch.
type Adapter struct {
	caps *capability.Capabilities
}

// New constructs the adapter. The search engine's feature set is
// static: fuzzy full-text and geo distance are always available,
// trigram and SQL-style EXPLAIN are not.
func New(limits capability.Limits) *Adapter {
	caps := capability.New(ID).
		AllowScalars(capability.ComparisonOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindDate).
		AllowScalars(capability.EqualityOps, schema.KindBool, schema.KindEnum).
		AllowScalars(capability.MembershipOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindDate, schema.KindEnum).
		AllowScalars(capability.TextOps, schema.KindString).
		AllowScalars(capability.NullOps,
			schema.KindString, schema.KindInt, schema.KindFloat, schema.KindBool, schema.KindDate, schema.KindEnum).
		AllowArrays(capability.ArrayOps, schema.KindString, schema.KindInt, schema.KindFloat, schema.KindEnum).
		Allow(schema.Scalar(schema.KindString), filter.OpFuzzy).
		Allow(schema.Scalar(schema.KindGeo), filter.OpWithinDistance)
	caps.Features = capability.Features{FullText: true, Geo: true}
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

// ApplyOperator compiles one predicate to a query node.
func (a *Adapter) ApplyOperator(_ adapter.CompiledQuery, field schema.FieldDescriptor, op filter.Operator, value filter.Value, opts adapter.ApplyOptions) (adapter.CompiledQuery, error) {
	f := field.StorageColumn()
	switch op {
	case filter.OpEq, filter.OpIncludes:
		// Term equality covers both: index fields are multi-valued,
		// so a term query on an array field is a membership test.
		if _, isNull := value.(filter.Null); isNull {
			return mustNot(exists(f)), nil
		}
		return term(f, value), nil
	case filter.OpNeq, filter.OpExcludes:
		// must_not term also matches documents lacking the field,
		// which is the in-memory complement.
		return mustNot(term(f, value)), nil

	case filter.OpGt:
		return rangeNode(f, "gt", value), nil
	case filter.OpGte:
		return rangeNode(f, "gte", value), nil
	case filter.OpLt:
		return rangeNode(f, "lt", value), nil
	case filter.OpLte:
		return rangeNode(f, "lte", value), nil

	case filter.OpIn, filter.OpIncludesAny:
		list, err := a.listOperand(op, value)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return matchNone(), nil
		}
		return terms(f, list), nil
	case filter.OpNotIn:
		list, err := a.listOperand(op, value)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return matchAll(), nil
		}
		return mustNot(terms(f, list)), nil

	case filter.OpIncludesAll:
		list, err := a.listOperand(op, value)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			// Every set is a superset of the empty set.
			return matchAll(), nil
		}
		// Superset test: one term per required element, all in filter
		// context.
		parts := make([]any, len(list))
		for i, elem := range list {
			parts[i] = term(f, elem)
		}
		return Node{"bool": Node{"filter": parts}}, nil

	case filter.OpContains, filter.OpStartsWith, filter.OpEndsWith:
		return textNode(f, op, value, opts.Fold)

	case filter.OpIsEmpty:
		want, ok := value.(filter.Bool)
		if !ok {
			return nil, fmt.Errorf("elasticsearch: _isEmpty expects a boolean operand, got %T", value)
		}
		// Empty arrays are indexed as absent fields, so existence is
		// exactly non-emptiness and the partition law holds.
		if want {
			return mustNot(exists(f)), nil
		}
		return exists(f), nil

	case filter.OpIsNull:
		want, ok := value.(filter.Bool)
		if !ok {
			return nil, fmt.Errorf("elasticsearch: _isNull expects a boolean operand, got %T", value)
		}
		if want {
			return mustNot(exists(f)), nil
		}
		return exists(f), nil

	case filter.OpFuzzy:
		s, ok := value.(filter.String)
		if !ok {
			return nil, fmt.Errorf("elasticsearch: _fuzzy expects a string operand, got %T", value)
		}
		return Node{"match": Node{f: Node{"query": string(s), "fuzziness": "AUTO"}}}, nil

	case filter.OpWithinDistance:
		return geoNode(f, value)

	default:
		return nil, fmt.Errorf("elasticsearch: operator %s not supported", op)
	}
}

// CombineAnd conjoins nodes in filter context (no scoring).
func (a *Adapter) CombineAnd(parts []adapter.CompiledQuery) (adapter.CompiledQuery, error) {
	nodes, err := castAll(parts)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return matchAll(), nil
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return Node{"bool": Node{"filter": asAny(nodes)}}, nil
}

// CombineOr disjoins nodes with should/minimum_should_match.
func (a *Adapter) CombineOr(parts []adapter.CompiledQuery) (adapter.CompiledQuery, error) {
	nodes, err := castAll(parts)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return matchNone(), nil
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return Node{"bool": Node{"should": asAny(nodes), "minimum_should_match": 1}}, nil
}

// Negate inverts a node with must_not.
func (a *Adapter) Negate(q adapter.CompiledQuery) (adapter.CompiledQuery, error) {
	node, err := cast(q)
	if err != nil {
		return nil, err
	}
	return mustNot(node), nil
}

// RenderBody wraps a compiled node in a search request body.
func RenderBody(q adapter.CompiledQuery) ([]byte, error) {
	node, err := cast(q)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Node{"query": node})
}

func (a *Adapter) listOperand(op filter.Operator, value filter.Value) (filter.Array, error) {
	list, ok := value.(filter.Array)
	if !ok {
		return nil, fmt.Errorf("elasticsearch: %s expects a list operand, got %T", op, value)
	}
	if limit := a.caps.Limits.MaxInItems; limit > 0 && len(list) > limit {
		return nil, fmt.Errorf("elasticsearch: %s list has %d items, limit is %d", op, len(list), limit)
	}
	return list, nil
}

func term(field string, v filter.Value) Node {
	return Node{"term": Node{field: Node{"value": filter.Native(v)}}}
}

func terms(field string, list filter.Array) Node {
	return Node{"terms": Node{field: filter.Native(list)}}
}

func rangeNode(field, bound string, v filter.Value) Node {
	return Node{"range": Node{field: Node{bound: filter.Native(v)}}}
}

func exists(field string) Node {
	return Node{"exists": Node{"field": field}}
}

func mustNot(n Node) Node {
	return Node{"bool": Node{"must_not": []any{n}}}
}

func matchAll() Node  { return Node{"match_all": Node{}} }
func matchNone() Node { return Node{"match_none": Node{}} }

func textNode(field string, op filter.Operator, value filter.Value, fold bool) (Node, error) {
	s, ok := value.(filter.String)
	if !ok {
		return nil, fmt.Errorf("elasticsearch: %s expects a string operand, got %T", op, value)
	}
	needle := escapeWildcard(string(s))
	switch op {
	case filter.OpStartsWith:
		n := Node{"value": string(s)}
		if fold {
			n["case_insensitive"] = true
		}
		return Node{"prefix": Node{field: n}}, nil
	case filter.OpContains:
		needle = "*" + needle + "*"
	case filter.OpEndsWith:
		needle = "*" + needle
	}
	n := Node{"value": needle}
	if fold {
		n["case_insensitive"] = true
	}
	return Node{"wildcard": Node{field: n}}, nil
}

func geoNode(field string, value filter.Value) (Node, error) {
	arr, ok := value.(filter.Array)
	if !ok || len(arr) != 3 {
		return nil, fmt.Errorf("elasticsearch: _withinDistance expects [lon, lat, meters]")
	}
	lon, lat, meters := filter.Native(arr[0]), filter.Native(arr[1]), filter.Native(arr[2])
	return Node{"geo_distance": Node{
		"distance": fmt.Sprintf("%vm", meters),
		field:      Node{"lon": lon, "lat": lat},
	}}, nil
}

// escapeWildcard neutralizes wildcard metacharacters in user input.
func escapeWildcard(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `*`, `\*`)
	s = strings.ReplaceAll(s, `?`, `\?`)
	return s
}

func cast(q adapter.CompiledQuery) (Node, error) {
	node, ok := q.(Node)
	if !ok {
		return nil, fmt.Errorf("elasticsearch: compiled query is %T, not a query node", q)
	}
	return node, nil
}

func castAll(parts []adapter.CompiledQuery) ([]Node, error) {
	out := make([]Node, len(parts))
	for i, p := range parts {
		n, err := cast(p)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func asAny(nodes []Node) []any {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}
