package complexity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/filtergate/internal/adapter"
)

// RenderFunc turns a compiled query into the executable statement the
// plan facility will be asked about. The relational adapters' own
// RenderSelect functions satisfy this.
type RenderFunc func(q adapter.CompiledQuery) (string, []any, error)

// DefaultIntrospectionTimeout bounds the plan round trip. A plan call
// slower than this is itself evidence the backend is overloaded, and
// the fallback path is cheap.
const DefaultIntrospectionTimeout = 2 * time.Second

// Introspective asks the backing store for its query plan and maps the
// planner's estimates onto the normalized scale. Any failure falls
// back to the static scorer rather than surfacing an error.
type Introspective struct {
	adapterID string
	db        *sql.DB
	render    RenderFunc
	fallback  *Heuristic
	timeout   time.Duration
	ceiling   float64
	logger    *slog.Logger
}

// IntrospectiveOption adjusts an Introspective analyzer.
type IntrospectiveOption func(*Introspective)

// WithTimeout bounds each plan round trip.
func WithTimeout(d time.Duration) IntrospectiveOption {
	return func(a *Introspective) { a.timeout = d }
}

// WithCeiling sets the raw cost mapped to a normalized score of 100.
func WithCeiling(c float64) IntrospectiveOption {
	return func(a *Introspective) { a.ceiling = c }
}

// WithFallback replaces the static scorer used when introspection
// fails.
func WithFallback(h *Heuristic) IntrospectiveOption {
	return func(a *Introspective) { a.fallback = h }
}

// WithLogger sets the logger for fail-open events.
func WithLogger(l *slog.Logger) IntrospectiveOption {
	return func(a *Introspective) { a.logger = l }
}

// NewIntrospective builds a plan-based analyzer for one backend
// connection. adapterID selects the plan dialect; only "postgres" and
// "sqlite" expose one.
func NewIntrospective(adapterID string, db *sql.DB, render RenderFunc, opts ...IntrospectiveOption) *Introspective {
	a := &Introspective{
		adapterID: adapterID,
		db:        db,
		render:    render,
		timeout:   DefaultIntrospectionTimeout,
		ceiling:   DefaultCostCeiling,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.fallback == nil {
		a.fallback = NewHeuristic(DefaultWeights(), a.ceiling)
	}
	return a
}

// Analyze runs the plan request with a bounded timeout. On any error
// it logs and falls back: to the static scorer when the expression
// tree is available, to an unknown analysis otherwise. The caller's
// query is never blocked by an analyzer failure.
func (a *Introspective) Analyze(ctx context.Context, req Request) Analysis {
	analysis, err := a.introspect(ctx, req)
	if err != nil {
		a.logger.Warn("query plan introspection failed, falling back",
			slog.String("adapter", a.adapterID),
			slog.String("error", err.Error()))
		if req.Expr != nil {
			return a.fallback.score(req, MethodHeuristicFallback)
		}
		return Unknown()
	}
	return analysis
}

func (a *Introspective) introspect(ctx context.Context, req Request) (Analysis, error) {
	if a.db == nil {
		return Analysis{}, fmt.Errorf("no connection for plan introspection")
	}
	if a.render == nil {
		return Analysis{}, fmt.Errorf("no renderer for plan introspection")
	}
	stmt, args, err := a.render(req.Query)
	if err != nil {
		return Analysis{}, fmt.Errorf("render statement: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	switch a.adapterID {
	case "postgres":
		return a.explainPostgres(ctx, stmt, args, req.Shape)
	case "sqlite":
		return a.explainSQLite(ctx, stmt, args, req.Shape)
	default:
		return Analysis{}, fmt.Errorf("adapter %s exposes no plan facility", a.adapterID)
	}
}

// pgPlanNode is the subset of the EXPLAIN (FORMAT JSON) output the
// analyzer reads.
type pgPlanNode struct {
	NodeType     string       `json:"Node Type"`
	RelationName string       `json:"Relation Name"`
	TotalCost    float64      `json:"Total Cost"`
	PlanRows     float64      `json:"Plan Rows"`
	Plans        []pgPlanNode `json:"Plans"`
}

func (a *Introspective) explainPostgres(ctx context.Context, stmt string, args []any, shape QueryShape) (Analysis, error) {
	var raw []byte
	row := a.db.QueryRowContext(ctx, "EXPLAIN (FORMAT JSON) "+stmt, args...)
	if err := row.Scan(&raw); err != nil {
		return Analysis{}, fmt.Errorf("explain: %w", err)
	}

	var plans []struct {
		Plan pgPlanNode `json:"Plan"`
	}
	if err := json.Unmarshal(raw, &plans); err != nil {
		return Analysis{}, fmt.Errorf("decode plan: %w", err)
	}
	if len(plans) == 0 {
		return Analysis{}, fmt.Errorf("empty plan")
	}
	root := plans[0].Plan

	var suggestions []string
	seqScans := seqScanRelations(root, nil)
	for _, rel := range seqScans {
		suggestions = append(suggestions,
			fmt.Sprintf("sequential scan on %q; an index on the filtered columns would avoid it", rel))
	}
	if shape.Limit == 0 && root.PlanRows > 10000 {
		suggestions = append(suggestions,
			fmt.Sprintf("plan estimates %.0f rows with no limit; bound the result set", root.PlanRows))
	}

	return Analysis{
		Cost:            root.TotalCost,
		NormalizedScore: Normalize(root.TotalCost, a.ceiling),
		Method:          MethodIntrospective,
		Suggestions:     suggestions,
		RawDetails: map[string]any{
			"planRows": root.PlanRows,
			"rootNode": root.NodeType,
			"seqScans": len(seqScans),
		},
	}, nil
}

func seqScanRelations(node pgPlanNode, acc []string) []string {
	if node.NodeType == "Seq Scan" && node.RelationName != "" {
		acc = append(acc, node.RelationName)
	}
	for _, child := range node.Plans {
		acc = seqScanRelations(child, acc)
	}
	return acc
}

// SQLite has no cost units; the analyzer charges a flat cost per full
// table scan and a small one per index search.
const (
	sqliteScanCost   = 1000
	sqliteSearchCost = 10
)

func (a *Introspective) explainSQLite(ctx context.Context, stmt string, args []any, shape QueryShape) (Analysis, error) {
	rows, err := a.db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+stmt, args...)
	if err != nil {
		return Analysis{}, fmt.Errorf("explain query plan: %w", err)
	}
	defer rows.Close()

	var (
		cost        float64
		scans       int
		searches    int
		suggestions []string
	)
	for rows.Next() {
		var id, parent, notused int
		var detail string
		if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
			return Analysis{}, fmt.Errorf("scan plan row: %w", err)
		}
		switch {
		case strings.HasPrefix(detail, "SCAN"):
			scans++
			cost += sqliteScanCost
			suggestions = append(suggestions,
				fmt.Sprintf("full table scan (%s); an index on the filtered columns would avoid it", detail))
		case strings.HasPrefix(detail, "SEARCH"):
			searches++
			cost += sqliteSearchCost
		}
	}
	if err := rows.Err(); err != nil {
		return Analysis{}, fmt.Errorf("plan rows: %w", err)
	}
	if shape.Limit == 0 && scans > 0 {
		suggestions = append(suggestions, "unbounded result over a scanned table; add a limit")
	}

	return Analysis{
		Cost:            cost,
		NormalizedScore: Normalize(cost, a.ceiling),
		Method:          MethodIntrospective,
		Suggestions:     suggestions,
		RawDetails: map[string]any{
			"scans":    scans,
			"searches": searches,
		},
	}, nil
}
