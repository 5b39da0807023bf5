// Package complexity estimates how expensive a compiled query will be
// to execute, producing a backend-agnostic Analysis the admission
// controller can compare against its limits.
//
// Two strategies exist: introspective analysis asks the backing store
// for its query plan, heuristic analysis scores the expression tree
// statically. Both produce the same Analysis shape, and both fail
// open: an analyzer error yields a synthetic "unknown cost" analysis
// rather than blocking the caller's query.
package complexity

import "math"

// Method identifies how an Analysis was produced.
type Method string

const (
	// MethodIntrospective means the backing store's plan facility
	// supplied the cost estimate.
	MethodIntrospective Method = "introspective"

	// MethodHeuristic means the expression tree was scored statically
	// with fixed per-construct weights.
	MethodHeuristic Method = "heuristic"

	// MethodHeuristicFallback means introspection was attempted and
	// failed, and the heuristic scorer supplied the estimate instead.
	MethodHeuristicFallback Method = "heuristic-fallback"

	// MethodUnknown means no estimate could be produced at all. The
	// admission controller treats an unknown analysis as acceptable.
	MethodUnknown Method = "unknown"
)

// Analysis is the result of analyzing one compiled query.
type Analysis struct {
	// Cost is the raw estimate in the producing strategy's own units:
	// planner cost units for introspective analysis, weight units for
	// heuristic analysis. Comparable only within one method.
	Cost float64 `json:"cost"`

	// NormalizedScore maps Cost onto a 0-100 scale so admission limits
	// are backend-agnostic.
	NormalizedScore float64 `json:"normalizedScore"`

	// Method records which strategy produced the analysis.
	Method Method `json:"method"`

	// Suggestions are actionable hints for reducing the query's cost.
	// A rejection must carry at least one.
	Suggestions []string `json:"suggestions,omitempty"`

	// RawDetails preserves strategy-specific measurements (plan rows,
	// scan kinds, per-weight contributions) for telemetry and
	// debugging. Never consulted by admission logic.
	RawDetails map[string]any `json:"rawDetails,omitempty"`
}

// Unknown is the fail-open analysis: zero cost, zero score, no
// suggestions.
func Unknown() Analysis {
	return Analysis{Method: MethodUnknown}
}

// DefaultCostCeiling is the raw cost mapped to a normalized score of
// 100. Costs above it clamp.
const DefaultCostCeiling = 1e6

// Normalize maps a raw cost onto the 0-100 scale. The mapping is
// logarithmic so that the score differentiates cheap queries finely
// and expensive ones coarsely:
//
//	score = 100 * ln(1+cost) / ln(1+ceiling)
//
// clamped to [0, 100]. A non-positive ceiling falls back to
// DefaultCostCeiling.
func Normalize(cost, ceiling float64) float64 {
	if cost <= 0 {
		return 0
	}
	if ceiling <= 0 {
		ceiling = DefaultCostCeiling
	}
	score := 100 * math.Log1p(cost) / math.Log1p(ceiling)
	if score > 100 {
		return 100
	}
	return score
}
