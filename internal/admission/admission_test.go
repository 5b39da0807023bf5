package admission

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filtergate/internal/complexity"
	"github.com/roach88/filtergate/internal/filter"
)

// countingAnalyzer returns a fixed analysis and records how often the
// underlying computation actually ran.
type countingAnalyzer struct {
	calls    int
	analysis complexity.Analysis
}

func (a *countingAnalyzer) Analyze(context.Context, complexity.Request) complexity.Analysis {
	a.calls++
	return a.analysis
}

func scored(score float64) *countingAnalyzer {
	return &countingAnalyzer{analysis: complexity.Analysis{
		Cost:            score * 100,
		NormalizedScore: score,
		Method:          complexity.MethodHeuristic,
	}}
}

func testExpr(t *testing.T) filter.Expr {
	t.Helper()
	expr, err := filter.Parse([]byte(`{"age": {"_gte": 18}}`))
	require.NoError(t, err)
	return expr
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CacheEnabled = false
	return cfg
}

func TestDecideBands(t *testing.T) {
	// BaseLimit 80, warn at 0.75 of it, no adaptive reduction.
	cfg := testConfig()
	cfg.AdaptiveLimits = false

	cases := []struct {
		score float64
		want  Outcome
	}{
		{score: 10, want: Accepted},
		{score: 59, want: Accepted},
		{score: 61, want: Warned},
		{score: 80, want: Warned},
		{score: 81, want: Rejected},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("score_%g", tc.score), func(t *testing.T) {
			c := NewController(cfg, scored(tc.score))
			d := c.Decide(context.Background(), "memory", complexity.Request{Expr: testExpr(t)})
			assert.Equal(t, tc.want, d.Outcome)
		})
	}
}

func TestRejectionIsActionable(t *testing.T) {
	cfg := testConfig()
	cfg.AdaptiveLimits = false
	c := NewController(cfg, scored(95))

	d := c.Decide(context.Background(), "memory", complexity.Request{Expr: testExpr(t)})
	require.Equal(t, Rejected, d.Outcome)
	require.NotNil(t, d.Rejection)
	assert.Equal(t, "QUERY_TOO_COMPLEX", d.Rejection.Code)
	assert.Equal(t, 95.0, d.Rejection.Score)
	assert.NotEmpty(t, d.Rejection.Suggestions, "a rejection always tells the caller what to do")
}

func TestEffectiveLimitMonotone(t *testing.T) {
	cfg := testConfig()
	c := NewController(cfg, scored(10))

	prev := float64(cfg.BaseLimit) + 1
	for lf := 0.0; lf <= 1.0; lf += 0.05 {
		limit := c.effectiveLimit(float64(cfg.BaseLimit), lf)
		assert.LessOrEqual(t, limit, prev, "effective limit must not rise with load")
		assert.LessOrEqual(t, limit, float64(cfg.BaseLimit))
		assert.GreaterOrEqual(t, limit, cfg.LimitFloor)
		prev = limit
	}
	assert.Equal(t, float64(cfg.BaseLimit), c.effectiveLimit(float64(cfg.BaseLimit), 0))
}

func TestEffectiveLimitFloor(t *testing.T) {
	cfg := testConfig()
	cfg.MaxReductionFraction = 1.0
	cfg.LimitFloor = 25
	c := NewController(cfg, scored(10))

	assert.Equal(t, 25.0, c.effectiveLimit(float64(cfg.BaseLimit), 1.0))
}

func TestAdaptiveRejectionUnderLoad(t *testing.T) {
	// A score fine at idle gets rejected at high load.
	cfg := testConfig()
	c := NewController(cfg, scored(50), WithLoad(StaticLoad(0)))
	assert.Equal(t, Accepted, c.Decide(context.Background(), "memory", complexity.Request{Expr: testExpr(t)}).Outcome)

	loaded := NewController(cfg, scored(50), WithLoad(StaticLoad(0.9)))
	d := loaded.Decide(context.Background(), "memory", complexity.Request{Expr: testExpr(t)})
	assert.Equal(t, Rejected, d.Outcome)
	assert.InDelta(t, 80*(1-0.9*0.7), d.EffectiveLimit, 0.001)
}

func TestCacheInvokesAnalyzerOncePerTTL(t *testing.T) {
	cfg := testConfig()
	cfg.CacheEnabled = true
	cfg.CacheSize = 16
	cfg.CacheTTL = Duration(50 * time.Millisecond)

	analyzer := scored(10)
	c := NewController(cfg, analyzer)
	expr := testExpr(t)

	first := c.Decide(context.Background(), "memory", complexity.Request{Expr: expr})
	second := c.Decide(context.Background(), "memory", complexity.Request{Expr: expr})
	assert.Equal(t, 1, analyzer.calls, "second decision within the TTL reuses the analysis")
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)

	time.Sleep(80 * time.Millisecond)
	c.Decide(context.Background(), "memory", complexity.Request{Expr: expr})
	assert.Equal(t, 2, analyzer.calls, "expired entry recomputes")
}

func TestCacheKeyedByAdapter(t *testing.T) {
	cfg := testConfig()
	cfg.CacheEnabled = true
	cfg.CacheSize = 16
	cfg.CacheTTL = Duration(time.Minute)

	analyzer := scored(10)
	c := NewController(cfg, analyzer)
	expr := testExpr(t)

	c.Decide(context.Background(), "postgres", complexity.Request{Expr: expr})
	c.Decide(context.Background(), "sqlite", complexity.Request{Expr: expr})
	assert.Equal(t, 2, analyzer.calls, "same filter on different backends analyzes separately")
}

func TestCancelledAnalysisNotCached(t *testing.T) {
	cfg := testConfig()
	cfg.CacheEnabled = true
	cfg.CacheSize = 16
	cfg.CacheTTL = Duration(time.Minute)

	analyzer := scored(10)
	c := NewController(cfg, analyzer)
	expr := testExpr(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Decide(ctx, "memory", complexity.Request{Expr: expr})
	c.Decide(context.Background(), "memory", complexity.Request{Expr: expr})
	assert.Equal(t, 2, analyzer.calls, "an abandoned analysis must not be visible to later readers")
}

func TestUnknownAnalysisAccepts(t *testing.T) {
	// Fail-open: when no estimate exists the query runs, even though
	// a zero-score comparison would also have passed a tiny limit.
	cfg := testConfig()
	cfg.BaseLimit = 1
	cfg.LimitFloor = 0
	c := NewController(cfg, &countingAnalyzer{analysis: complexity.Unknown()}, WithLoad(StaticLoad(1)))

	d := c.Decide(context.Background(), "memory", complexity.Request{Expr: testExpr(t)})
	assert.Equal(t, Accepted, d.Outcome)
	assert.Nil(t, d.Rejection)
}

func TestLimitOverride(t *testing.T) {
	cfg := testConfig()
	cfg.AdaptiveLimits = false
	c := NewController(cfg, scored(50))

	d := c.Decide(context.Background(), "memory", complexity.Request{Expr: testExpr(t)},
		WithLimitOverride(40))
	assert.Equal(t, Rejected, d.Outcome)
	assert.Equal(t, 40.0, d.EffectiveLimit)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(`
baseLimit: 60
warnThreshold: 0.5
cacheTtl: 30s
maxReductionFraction: 0.4
`))
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.BaseLimit)
	assert.Equal(t, 0.5, cfg.WarnThreshold)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.CacheTTL))
	assert.Equal(t, 0.4, cfg.MaxReductionFraction)
	assert.True(t, cfg.AdaptiveLimits, "unset fields keep defaults")
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	_, err := LoadConfig(strings.NewReader(`baseLimit: -1`))
	assert.ErrorContains(t, err, "baseLimit")

	_, err = LoadConfig(strings.NewReader(`warnThreshold: 2.0`))
	assert.ErrorContains(t, err, "warnThreshold")

	_, err = LoadConfig(strings.NewReader(`unknownKnob: true`))
	assert.Error(t, err, "unknown keys are configuration mistakes")
}

func TestRefresherPublishesAndKeepsLastGood(t *testing.T) {
	var calls int
	sampler := SamplerFunc(func(context.Context) (LoadSnapshot, error) {
		calls++
		if calls > 1 {
			return LoadSnapshot{}, fmt.Errorf("metrics source down")
		}
		return LoadSnapshot{LoadFactor: 0.6, Source: "test"}, nil
	})

	r := NewRefresher(sampler, 10*time.Millisecond, nil)
	r.Start(context.Background())
	defer r.Stop()

	require.Eventually(t, func() bool {
		return r.Snapshot().LoadFactor == 0.6
	}, time.Second, 5*time.Millisecond)

	// Later failing samples keep the last good snapshot.
	require.Eventually(t, func() bool { return calls >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0.6, r.Snapshot().LoadFactor)
	assert.Equal(t, "test", r.Snapshot().Source)
}

func TestRefresherStartIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	r := NewRefresher(SamplerFunc(func(context.Context) (LoadSnapshot, error) {
		calls.Add(1)
		return LoadSnapshot{LoadFactor: 0.2}, nil
	}), time.Hour, nil)

	r.Start(context.Background())
	r.Start(context.Background())

	require.Eventually(t, func() bool {
		return r.Snapshot().LoadFactor == 0.2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "a second Start must not spawn a second sampler")

	// Stop waits on the one goroutine the first Start created; a
	// replaced done channel would deadlock here.
	r.Stop()
}

func TestRefresherClampsLoadFactor(t *testing.T) {
	r := NewRefresher(SamplerFunc(func(context.Context) (LoadSnapshot, error) {
		return LoadSnapshot{LoadFactor: 3.5}, nil
	}), time.Minute, nil)
	r.Start(context.Background())
	defer r.Stop()

	require.Eventually(t, func() bool {
		return r.Snapshot().LoadFactor == 1.0
	}, time.Second, 5*time.Millisecond)
}
