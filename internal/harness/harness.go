package harness

import (
	"fmt"

	"github.com/roach88/filtergate/internal/adapter/memory"
	"github.com/roach88/filtergate/internal/compile"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// Run compiles the scenario's filter against the in-memory reference
// backend, executes it over the fixture dataset, and returns the
// matched row ids in dataset order.
func Run(s *Scenario) ([]int64, error) {
	table, err := s.FieldTable()
	if err != nil {
		return nil, err
	}
	expr, err := s.Expr()
	if err != nil {
		return nil, err
	}
	var opts []compile.Option
	if s.Fold {
		opts = append(opts, compile.WithFold())
	}
	q, err := compile.Compile(expr, table, s.AuthorizedSet(), memory.New(), opts...)
	if err != nil {
		return nil, err
	}
	matched, err := memory.Filter(Rows(s.Dataset), q)
	if err != nil {
		return nil, err
	}
	return IDs(matched)
}

// Rows converts decoded YAML maps to memory rows.
func Rows(dataset []map[string]any) []memory.Row {
	rows := make([]memory.Row, len(dataset))
	for i, m := range dataset {
		rows[i] = memory.Row(m)
	}
	return rows
}

// IDs extracts each row's integer id.
func IDs(rows []memory.Row) ([]int64, error) {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		switch v := r["id"].(type) {
		case int:
			ids[i] = int64(v)
		case int64:
			ids[i] = v
		case float64:
			ids[i] = int64(v)
		default:
			return nil, fmt.Errorf("row %d has no integer id (got %T)", i, r["id"])
		}
	}
	return ids, nil
}

// MatchSet evaluates one filter document over a dataset and returns
// the matched ids as a set. Used by the algebraic law tests, which
// compare match sets rather than ordered results.
func MatchSet(table *schema.FieldTable, rows []memory.Row, doc string) (map[int64]bool, error) {
	expr, err := filter.Parse([]byte(doc))
	if err != nil {
		return nil, err
	}
	q, err := compile.Compile(expr, table, schema.AllFields(), memory.New())
	if err != nil {
		return nil, err
	}
	matched, err := memory.Filter(rows, q)
	if err != nil {
		return nil, err
	}
	ids, err := IDs(matched)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
