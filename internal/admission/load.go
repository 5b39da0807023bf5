package admission

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LoadSnapshot is one published measurement of backend pressure.
// LoadFactor 0 is idle, 1 is saturated; the component measurements it
// was derived from ride along for telemetry.
type LoadSnapshot struct {
	LoadFactor float64   `json:"loadFactor"`
	ObservedAt time.Time `json:"observedAt"`
	Source     string    `json:"source"`

	// ActiveConnections and CacheHitRatio are the raw inputs the
	// sampler combined into LoadFactor. Zero when the source does not
	// measure them.
	ActiveConnections int     `json:"activeConnections,omitempty"`
	CacheHitRatio     float64 `json:"cacheHitRatio,omitempty"`
}

// Sampler measures current load. Implementations query a metrics
// source (connection pool stats, a monitoring API) and may block.
type Sampler interface {
	Sample(ctx context.Context) (LoadSnapshot, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(ctx context.Context) (LoadSnapshot, error)

func (f SamplerFunc) Sample(ctx context.Context) (LoadSnapshot, error) { return f(ctx) }

// SnapshotSource yields the last published load snapshot without
// blocking. The decision path reads through this interface so a slow
// metrics source never adds latency to admission.
type SnapshotSource interface {
	Snapshot() LoadSnapshot
}

// StaticLoad is a fixed-load source, for tests and for deployments
// without a metrics feed.
type StaticLoad float64

func (s StaticLoad) Snapshot() LoadSnapshot {
	return LoadSnapshot{LoadFactor: float64(s), Source: "static"}
}

// PoolSampler derives load from a database/sql connection pool: the
// fraction of the pool currently in use. The pool must be bounded
// with SetMaxOpenConns; an unbounded pool cannot saturate and always
// reports zero.
type PoolSampler struct {
	DB *sql.DB
}

func (p PoolSampler) Sample(ctx context.Context) (LoadSnapshot, error) {
	stats := p.DB.Stats()
	var factor float64
	if stats.MaxOpenConnections > 0 {
		factor = float64(stats.InUse) / float64(stats.MaxOpenConnections)
	}
	return LoadSnapshot{
		LoadFactor:        factor,
		Source:            "pool",
		ActiveConnections: stats.InUse,
	}, nil
}

// Refresher samples load on a fixed interval in the background and
// publishes the result atomically. A failed sample keeps the previous
// snapshot; the decision path always sees the last good measurement.
type Refresher struct {
	sampler  Sampler
	interval time.Duration
	logger   *slog.Logger

	snap      atomic.Pointer[LoadSnapshot]
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewRefresher builds a refresher; Start must be called before
// snapshots reflect real measurements. Before the first successful
// sample, Snapshot reports zero load, which errs toward admitting.
func NewRefresher(sampler Sampler, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{sampler: sampler, interval: interval, logger: logger}
}

// Start samples once immediately, then on every interval tick until
// the context is cancelled or Stop is called. Only the first call
// starts the sampling goroutine.
func (r *Refresher) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, r.cancel = context.WithCancel(ctx)
		r.done = make(chan struct{})
		go r.run(ctx)
	})
}

// Stop halts the background sampling and waits for it to finish.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
	})
}

// Snapshot returns the last published measurement.
func (r *Refresher) Snapshot() LoadSnapshot {
	if s := r.snap.Load(); s != nil {
		return *s
	}
	return LoadSnapshot{}
}

func (r *Refresher) run(ctx context.Context) {
	defer close(r.done)
	r.sampleOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sampleOnce(ctx)
		}
	}
}

func (r *Refresher) sampleOnce(ctx context.Context) {
	snap, err := r.sampler.Sample(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("load sample failed, keeping previous snapshot",
				slog.String("error", err.Error()))
		}
		return
	}
	if snap.LoadFactor < 0 {
		snap.LoadFactor = 0
	}
	if snap.LoadFactor > 1 {
		snap.LoadFactor = 1
	}
	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = time.Now().UTC()
	}
	r.snap.Store(&snap)
}
