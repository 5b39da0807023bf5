package elastic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filtergate/internal/adapter"
	"github.com/roach88/filtergate/internal/capability"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

func node(t *testing.T, a *Adapter, field schema.FieldDescriptor, op filter.Operator, v filter.Value) Node {
	t.Helper()
	q, err := a.ApplyOperator(nil, field, op, v, adapter.ApplyOptions{})
	require.NoError(t, err)
	n, ok := q.(Node)
	require.True(t, ok)
	return n
}

func TestTermAndRange(t *testing.T) {
	a := New(capability.Limits{})
	age := schema.FieldDescriptor{Name: "age", Kind: schema.Scalar(schema.KindInt)}

	eq := node(t, a, age, filter.OpEq, filter.Int(30))
	assert.Equal(t, Node{"term": Node{"age": Node{"value": int64(30)}}}, eq)

	gte := node(t, a, age, filter.OpGte, filter.Int(18))
	assert.Equal(t, Node{"range": Node{"age": Node{"gte": int64(18)}}}, gte)
}

func TestNullEqualityIsAbsence(t *testing.T) {
	a := New(capability.Limits{})
	name := schema.FieldDescriptor{Name: "name", Kind: schema.Scalar(schema.KindString)}

	eqNull := node(t, a, name, filter.OpEq, filter.Null{})
	assert.Equal(t, Node{"bool": Node{"must_not": []any{Node{"exists": Node{"field": "name"}}}}}, eqNull)
}

func TestMembership(t *testing.T) {
	a := New(capability.Limits{})
	status := schema.FieldDescriptor{Name: "status", Kind: schema.Scalar(schema.KindString)}

	in := node(t, a, status, filter.OpIn, filter.Array{filter.String("a"), filter.String("b")})
	assert.Equal(t, Node{"terms": Node{"status": []any{"a", "b"}}}, in)

	empty := node(t, a, status, filter.OpIn, filter.Array{})
	assert.Equal(t, Node{"match_none": Node{}}, empty)

	ninEmpty := node(t, a, status, filter.OpNotIn, filter.Array{})
	assert.Equal(t, Node{"match_all": Node{}}, ninEmpty)
}

func TestArrayOperators(t *testing.T) {
	a := New(capability.Limits{})
	tags := schema.FieldDescriptor{Name: "tags", Kind: schema.ArrayOf(schema.KindString)}

	// Multi-valued index fields make membership a plain term query.
	includes := node(t, a, tags, filter.OpIncludes, filter.String("go"))
	assert.Equal(t, Node{"term": Node{"tags": Node{"value": "go"}}}, includes)

	all := node(t, a, tags, filter.OpIncludesAll, filter.Array{filter.String("a"), filter.String("b")})
	assert.Equal(t, Node{"bool": Node{"filter": []any{
		Node{"term": Node{"tags": Node{"value": "a"}}},
		Node{"term": Node{"tags": Node{"value": "b"}}},
	}}}, all)

	allEmpty := node(t, a, tags, filter.OpIncludesAll, filter.Array{})
	assert.Equal(t, Node{"match_all": Node{}}, allEmpty)

	anyOf := node(t, a, tags, filter.OpIncludesAny, filter.Array{filter.String("a")})
	assert.Equal(t, Node{"terms": Node{"tags": []any{"a"}}}, anyOf)
}

func TestIsEmptyIsExistence(t *testing.T) {
	a := New(capability.Limits{})
	tags := schema.FieldDescriptor{Name: "tags", Kind: schema.ArrayOf(schema.KindString)}

	empty := node(t, a, tags, filter.OpIsEmpty, filter.Bool(true))
	assert.Equal(t, Node{"bool": Node{"must_not": []any{Node{"exists": Node{"field": "tags"}}}}}, empty)

	nonEmpty := node(t, a, tags, filter.OpIsEmpty, filter.Bool(false))
	assert.Equal(t, Node{"exists": Node{"field": "tags"}}, nonEmpty)
}

func TestIsNullNotOfferedForArrays(t *testing.T) {
	// The index cannot distinguish null from [], so _isNull stays a
	// scalar-only capability rather than silently aliasing _isEmpty.
	a := New(capability.Limits{})
	assert.True(t, a.Capabilities().Supports(filter.OpIsNull, schema.Scalar(schema.KindString)))
	assert.False(t, a.Capabilities().Supports(filter.OpIsNull, schema.ArrayOf(schema.KindString)))
}

func TestTextOperators(t *testing.T) {
	a := New(capability.Limits{})
	name := schema.FieldDescriptor{Name: "name", Kind: schema.Scalar(schema.KindString)}

	prefix := node(t, a, name, filter.OpStartsWith, filter.String("Ada"))
	assert.Equal(t, Node{"prefix": Node{"name": Node{"value": "Ada"}}}, prefix)

	contains := node(t, a, name, filter.OpContains, filter.String("a*b"))
	assert.Equal(t, Node{"wildcard": Node{"name": Node{"value": `*a\*b*`}}}, contains,
		"wildcard metacharacters in user input are escaped")

	q, err := a.ApplyOperator(nil, name, filter.OpContains, filter.String("ada"), adapter.ApplyOptions{Fold: true})
	require.NoError(t, err)
	folded := q.(Node)
	assert.Equal(t, Node{"wildcard": Node{"name": Node{"value": "*ada*", "case_insensitive": true}}}, folded)
}

func TestFuzzyAndGeo(t *testing.T) {
	a := New(capability.Limits{})
	name := schema.FieldDescriptor{Name: "name", Kind: schema.Scalar(schema.KindString)}
	loc := schema.FieldDescriptor{Name: "loc", Kind: schema.Scalar(schema.KindGeo)}

	fuzzy := node(t, a, name, filter.OpFuzzy, filter.String("ada"))
	assert.Equal(t, Node{"match": Node{"name": Node{"query": "ada", "fuzziness": "AUTO"}}}, fuzzy)

	geo := node(t, a, loc, filter.OpWithinDistance, filter.Array{filter.Float(13.4), filter.Float(52.5), filter.Int(1000)})
	assert.Equal(t, Node{"geo_distance": Node{
		"distance": "1000m",
		"loc":      Node{"lon": 13.4, "lat": 52.5},
	}}, geo)
}

func TestCombinators(t *testing.T) {
	a := New(capability.Limits{})
	age := schema.FieldDescriptor{Name: "age", Kind: schema.Scalar(schema.KindInt)}

	x := node(t, a, age, filter.OpGte, filter.Int(18))
	y := node(t, a, age, filter.OpLt, filter.Int(65))

	and, err := a.CombineAnd([]adapter.CompiledQuery{x, y})
	require.NoError(t, err)
	assert.Equal(t, Node{"bool": Node{"filter": []any{x, y}}}, and)

	or, err := a.CombineOr([]adapter.CompiledQuery{x, y})
	require.NoError(t, err)
	assert.Equal(t, Node{"bool": Node{"should": []any{x, y}, "minimum_should_match": 1}}, or)

	not, err := a.Negate(x)
	require.NoError(t, err)
	assert.Equal(t, Node{"bool": Node{"must_not": []any{x}}}, not)

	single, err := a.CombineAnd([]adapter.CompiledQuery{x})
	require.NoError(t, err)
	assert.Equal(t, x, single, "single-child conjunction collapses")
}

func TestRenderBody(t *testing.T) {
	a := New(capability.Limits{})
	age := schema.FieldDescriptor{Name: "age", Kind: schema.Scalar(schema.KindInt)}

	q := node(t, a, age, filter.OpGte, filter.Int(18))
	body, err := RenderBody(q)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Contains(t, decoded, "query")
}
