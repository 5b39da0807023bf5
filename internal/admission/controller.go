// Package admission decides whether a compiled query may run, based on
// its complexity analysis and the backend's current load. A rejection
// is a structured business outcome, not an error: it always carries a
// machine-usable code, the offending score, and at least one
// actionable suggestion.
package admission

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/roach88/filtergate/internal/complexity"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/telemetry"
)

// Outcome is the admission verdict.
type Outcome string

const (
	Accepted Outcome = "accepted"
	Warned   Outcome = "warned"
	Rejected Outcome = "rejected"
)

// RejectionCode is the machine-usable code carried by every rejection.
const RejectionCode = "QUERY_TOO_COMPLEX"

// Rejection is the structured payload returned to the caller when a
// query is refused.
type Rejection struct {
	Code        string   `json:"code"`
	Score       float64  `json:"score"`
	Cost        float64  `json:"cost"`
	Suggestions []string `json:"suggestions"`
}

// Decision is the full outcome of one admission check.
type Decision struct {
	Outcome        Outcome
	Analysis       complexity.Analysis
	EffectiveLimit float64
	Load           LoadSnapshot
	CacheHit       bool

	// Rejection is set only when Outcome is Rejected.
	Rejection *Rejection
}

// Controller applies the admission policy. Safe for concurrent use:
// the analysis cache serializes only its own bookkeeping, and two
// concurrent misses for one signature may both analyze and race to
// insert, which is harmless.
type Controller struct {
	cfg      Config
	analyzer complexity.Analyzer
	cache    *expirable.LRU[string, complexity.Analysis]
	load     SnapshotSource
	sink     telemetry.Sink
}

// ControllerOption adjusts a Controller.
type ControllerOption func(*Controller)

// WithLoad sets the load source consulted for adaptive limits.
func WithLoad(src SnapshotSource) ControllerOption {
	return func(c *Controller) { c.load = src }
}

// WithTelemetry sets the sink receiving one event per decision.
func WithTelemetry(sink telemetry.Sink) ControllerOption {
	return func(c *Controller) { c.sink = sink }
}

// NewController builds a controller. cfg must have passed Validate.
func NewController(cfg Config, analyzer complexity.Analyzer, opts ...ControllerOption) *Controller {
	c := &Controller{
		cfg:      cfg,
		analyzer: analyzer,
		load:     StaticLoad(0),
		sink:     telemetry.Nop{},
	}
	if cfg.CacheEnabled {
		c.cache = expirable.NewLRU[string, complexity.Analysis](
			cfg.CacheSize, nil, time.Duration(cfg.CacheTTL))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DecideOption adjusts one decision.
type DecideOption func(*decideOptions)

type decideOptions struct {
	limitOverride int
}

// WithLimitOverride substitutes the base limit for this query only.
// Used for fields or callers granted a different complexity budget.
func WithLimitOverride(limit int) DecideOption {
	return func(o *decideOptions) { o.limitOverride = limit }
}

// Decide analyzes the query (or reuses a fresh cached analysis) and
// compares its normalized score against the effective limit. An
// analysis that could not be produced at all admits the query: the
// analyzer is advisory, never a gate on correctness.
func (c *Controller) Decide(ctx context.Context, adapterID string, req complexity.Request, opts ...DecideOption) Decision {
	var o decideOptions
	for _, opt := range opts {
		opt(&o)
	}

	snap := c.load.Snapshot()
	analysis, hit := c.analyze(ctx, adapterID, req)

	base := float64(c.cfg.BaseLimit)
	if o.limitOverride > 0 {
		base = float64(o.limitOverride)
	}
	limit := c.effectiveLimit(base, snap.LoadFactor)

	d := Decision{
		Analysis:       analysis,
		EffectiveLimit: limit,
		Load:           snap,
		CacheHit:       hit,
	}
	switch {
	case analysis.Method == complexity.MethodUnknown:
		d.Outcome = Accepted
	case analysis.NormalizedScore > limit:
		d.Outcome = Rejected
		d.Rejection = &Rejection{
			Code:        RejectionCode,
			Score:       analysis.NormalizedScore,
			Cost:        analysis.Cost,
			Suggestions: rejectionSuggestions(analysis),
		}
	case analysis.NormalizedScore > c.cfg.WarnThreshold*limit:
		d.Outcome = Warned
	default:
		d.Outcome = Accepted
	}

	c.sink.Emit(ctx, telemetry.NewEvent(eventKind(d.Outcome), analysis, snap.LoadFactor, snap))
	return d
}

// analyze returns the cached analysis when one is fresh, otherwise
// invokes the analyzer. A result computed under a cancelled context is
// returned to the caller but never cached, so an abandoned analysis
// cannot become visible to other readers.
func (c *Controller) analyze(ctx context.Context, adapterID string, req complexity.Request) (complexity.Analysis, bool) {
	if c.cache == nil || req.Expr == nil {
		return c.analyzer.Analyze(ctx, req), false
	}
	key := filter.Signature(req.Expr, adapterID)
	if cached, ok := c.cache.Get(key); ok {
		return cached, true
	}
	analysis := c.analyzer.Analyze(ctx, req)
	if ctx.Err() == nil {
		c.cache.Add(key, analysis)
	}
	return analysis, false
}

// effectiveLimit shrinks the base limit linearly with load, clamped to
// [floor, base]. Non-increasing in loadFactor.
func (c *Controller) effectiveLimit(base, loadFactor float64) float64 {
	if !c.cfg.AdaptiveLimits {
		return base
	}
	if loadFactor < 0 {
		loadFactor = 0
	}
	if loadFactor > 1 {
		loadFactor = 1
	}
	limit := base * (1 - loadFactor*c.cfg.MaxReductionFraction)
	floor := c.cfg.LimitFloor
	if floor > base {
		floor = base
	}
	if limit < floor {
		limit = floor
	}
	if limit > base {
		limit = base
	}
	return limit
}

// rejectionSuggestions guarantees a rejection is actionable even when
// the analysis produced no specific hints.
func rejectionSuggestions(a complexity.Analysis) []string {
	if len(a.Suggestions) > 0 {
		return a.Suggestions
	}
	return []string{"reduce the number of filter conditions or split the query"}
}

func eventKind(o Outcome) telemetry.Kind {
	switch o {
	case Rejected:
		return telemetry.KindRejected
	case Warned:
		return telemetry.KindWarned
	default:
		return telemetry.KindAccepted
	}
}
