package complexity

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/filtergate/internal/filter"
)

// Weights are the per-construct costs the heuristic scorer sums.
// Units are arbitrary; only the ratio between weights and the
// normalization ceiling matters.
type Weights struct {
	// Condition is charged once per leaf condition.
	Condition float64

	// Association is charged per relation hop in a dotted field path,
	// on top of the condition itself. Traversals dominate cost on
	// relational backends.
	Association float64

	// UnboundedSort is charged when the query sorts without a limit.
	UnboundedSort float64

	// OffsetRow is charged per skipped row beyond OffsetGrace. Deep
	// offsets force the backend to materialize and discard rows.
	OffsetRow float64

	// Custom is charged per condition on a custom-filtered field. The
	// fragment is opaque, so its real cost cannot be estimated; the
	// weight errs conservative rather than free.
	Custom float64
}

// DefaultWeights charges 1 per condition, treats a relation traversal
// as ten conditions, and a custom fragment as five.
func DefaultWeights() Weights {
	return Weights{
		Condition:     1,
		Association:   10,
		UnboundedSort: 10,
		OffsetRow:     0.01,
		Custom:        5,
	}
}

// OffsetGrace is the offset depth below which no offset cost is
// charged. Shallow pagination is normal use, not a complexity signal.
const OffsetGrace = 1000

// Heuristic scores an expression tree statically. It needs no
// connection and cannot fail, so it doubles as the fallback for
// introspective analyzers.
type Heuristic struct {
	weights Weights
	ceiling float64
}

// NewHeuristic builds a static scorer. A zero ceiling falls back to
// DefaultCostCeiling.
func NewHeuristic(weights Weights, ceiling float64) *Heuristic {
	return &Heuristic{weights: weights, ceiling: ceiling}
}

// Analyze sums the configured weights over the expression tree and
// shape. The context is unused; the signature matches Analyzer.
func (h *Heuristic) Analyze(_ context.Context, req Request) Analysis {
	return h.score(req, MethodHeuristic)
}

func (h *Heuristic) score(req Request, method Method) Analysis {
	var (
		cost        float64
		conditions  int
		traversals  int
		customConds int
		suggestions []string
	)

	if req.Expr != nil {
		for _, leaf := range filter.Leaves(req.Expr) {
			n := len(leaf.Conditions)
			conditions += n

			custom := false
			if req.Fields != nil {
				if desc, ok := req.Fields.Field(leaf.Field); ok {
					custom = desc.Custom
				}
			}
			if custom {
				customConds += n
				cost += float64(n) * h.weights.Custom
			} else {
				cost += float64(n) * h.weights.Condition
			}

			if hops := strings.Count(leaf.Field, "."); hops > 0 {
				traversals += hops
				cost += float64(hops) * h.weights.Association
			}
		}
	}

	if req.Shape.Sorted && req.Shape.Limit == 0 {
		cost += h.weights.UnboundedSort
		suggestions = append(suggestions, "bound sorted results with a limit")
	}
	if req.Shape.Offset > OffsetGrace {
		cost += float64(req.Shape.Offset-OffsetGrace) * h.weights.OffsetRow
		suggestions = append(suggestions,
			fmt.Sprintf("offset %d forces the backend to discard rows; use keyset pagination", req.Shape.Offset))
	}
	if traversals > 0 {
		suggestions = append(suggestions,
			"relation traversals are expensive; narrow the filter to direct fields where possible")
	}

	return Analysis{
		Cost:            cost,
		NormalizedScore: Normalize(cost, h.ceiling),
		Method:          method,
		Suggestions:     suggestions,
		RawDetails: map[string]any{
			"conditions":       conditions,
			"traversals":       traversals,
			"customConditions": customConds,
		},
	}
}
