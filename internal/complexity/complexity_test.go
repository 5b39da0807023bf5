package complexity

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

func scoringFields(t *testing.T) *schema.FieldTable {
	t.Helper()
	table, err := schema.NewFieldTable([]schema.FieldDescriptor{
		{Name: "age", Kind: schema.Scalar(schema.KindInt)},
		{Name: "name", Kind: schema.Scalar(schema.KindString)},
		{Name: "search", Kind: schema.Scalar(schema.KindString), Custom: true},
		{Name: "author.name", Kind: schema.Scalar(schema.KindString)},
	}, nil)
	require.NoError(t, err)
	return table
}

func parseExpr(t *testing.T, raw string) filter.Expr {
	t.Helper()
	expr, err := filter.Parse([]byte(raw))
	require.NoError(t, err)
	return expr
}

func TestNormalize(t *testing.T) {
	assert.Zero(t, Normalize(0, DefaultCostCeiling))
	assert.Zero(t, Normalize(-5, DefaultCostCeiling))
	assert.Equal(t, 100.0, Normalize(DefaultCostCeiling*10, DefaultCostCeiling), "clamps at 100")

	// Monotone: more cost never scores lower.
	prev := 0.0
	for _, cost := range []float64{1, 10, 100, 1e3, 1e4, 1e5, 1e6} {
		score := Normalize(cost, DefaultCostCeiling)
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}
	assert.InDelta(t, 100.0, prev, 0.01, "cost at the ceiling scores 100")
}

func TestHeuristicConditionWeights(t *testing.T) {
	h := NewHeuristic(DefaultWeights(), DefaultCostCeiling)
	fields := scoringFields(t)

	one := h.Analyze(context.Background(), Request{
		Expr:   parseExpr(t, `{"age": {"_gte": 18}}`),
		Fields: fields,
	})
	three := h.Analyze(context.Background(), Request{
		Expr:   parseExpr(t, `{"age": {"_gte": 18, "_lte": 65}, "name": {"_eq": "x"}}`),
		Fields: fields,
	})

	assert.Equal(t, MethodHeuristic, one.Method)
	assert.Equal(t, 1.0, one.Cost)
	assert.Equal(t, 3.0, three.Cost)
	assert.Greater(t, three.NormalizedScore, one.NormalizedScore)
}

func TestHeuristicCustomFieldWeight(t *testing.T) {
	h := NewHeuristic(DefaultWeights(), DefaultCostCeiling)

	a := h.Analyze(context.Background(), Request{
		Expr:   parseExpr(t, `{"search": {"_eq": "x"}}`),
		Fields: scoringFields(t),
	})
	assert.Equal(t, DefaultWeights().Custom, a.Cost, "opaque fragments are charged the custom weight")
}

func TestHeuristicAssociationWeight(t *testing.T) {
	h := NewHeuristic(DefaultWeights(), DefaultCostCeiling)

	a := h.Analyze(context.Background(), Request{
		Expr:   parseExpr(t, `{"author.name": {"_eq": "ada"}}`),
		Fields: scoringFields(t),
	})
	w := DefaultWeights()
	assert.Equal(t, w.Condition+w.Association, a.Cost)
	assert.NotEmpty(t, a.Suggestions)
}

func TestHeuristicShapeSignals(t *testing.T) {
	h := NewHeuristic(DefaultWeights(), DefaultCostCeiling)
	expr := parseExpr(t, `{"age": {"_gte": 18}}`)
	fields := scoringFields(t)

	sorted := h.Analyze(context.Background(), Request{
		Expr: expr, Fields: fields,
		Shape: QueryShape{Sorted: true},
	})
	assert.Contains(t, sorted.Suggestions[0], "limit")

	bounded := h.Analyze(context.Background(), Request{
		Expr: expr, Fields: fields,
		Shape: QueryShape{Sorted: true, Limit: 50},
	})
	assert.Empty(t, bounded.Suggestions, "a bounded sort is fine")
	assert.Less(t, bounded.Cost, sorted.Cost)

	deep := h.Analyze(context.Background(), Request{
		Expr: expr, Fields: fields,
		Shape: QueryShape{Offset: 100000},
	})
	assert.Contains(t, deep.Suggestions[0], "keyset")
	shallow := h.Analyze(context.Background(), Request{
		Expr: expr, Fields: fields,
		Shape: QueryShape{Offset: 200},
	})
	assert.Equal(t, 1.0, shallow.Cost, "shallow offsets are free")
}

func TestIntrospectiveFailsOpenToHeuristic(t *testing.T) {
	// No connection: introspection cannot run, and the static scorer
	// must take over without surfacing an error.
	a := NewIntrospective("postgres", nil, nil)

	got := a.Analyze(context.Background(), Request{
		Expr:   parseExpr(t, `{"age": {"_gte": 18}}`),
		Fields: scoringFields(t),
	})
	assert.Equal(t, MethodHeuristicFallback, got.Method)
	assert.Equal(t, 1.0, got.Cost)
}

func TestIntrospectiveWithoutRendererFailsOpen(t *testing.T) {
	// A connection but no renderer: the statement can never be built,
	// so the static scorer must take over before the pool is touched.
	a := NewIntrospective("postgres", new(sql.DB), nil)

	got := a.Analyze(context.Background(), Request{
		Expr:   parseExpr(t, `{"age": {"_gte": 18}}`),
		Fields: scoringFields(t),
	})
	assert.Equal(t, MethodHeuristicFallback, got.Method)
	assert.Equal(t, 1.0, got.Cost)
}

func TestIntrospectiveFailsOpenToUnknown(t *testing.T) {
	a := NewIntrospective("postgres", nil, nil)

	got := a.Analyze(context.Background(), Request{})
	assert.Equal(t, MethodUnknown, got.Method)
	assert.Zero(t, got.Cost)
	assert.Zero(t, got.NormalizedScore)
}
