package complexity

import (
	"context"

	"github.com/roach88/filtergate/internal/adapter"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// QueryShape carries the pagination and ordering hints that affect
// cost but are not part of the filter expression itself.
type QueryShape struct {
	// Sorted reports whether the query orders its results.
	Sorted bool

	// Limit bounds the result set. Zero means unbounded.
	Limit int

	// Offset is the number of rows skipped before the first result.
	Offset int
}

// Request is everything an analyzer may consult about one query.
// Introspective analysis uses the compiled form; heuristic analysis
// uses the expression tree and shape.
type Request struct {
	Expr   filter.Expr
	Fields *schema.FieldTable
	Query  adapter.CompiledQuery
	Shape  QueryShape
}

// Analyzer estimates the execution cost of one query. Analyze never
// returns an error: a strategy that cannot produce an estimate falls
// back per the fail-open policy and reports that in Analysis.Method.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) Analysis
}
