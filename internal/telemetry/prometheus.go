package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink counts decisions and tracks the score distribution.
type PrometheusSink struct {
	decisions *prometheus.CounterVec
	scores    prometheus.Histogram
	load      prometheus.Gauge
}

// NewPrometheusSink builds and registers the admission metrics on the
// given registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "filtergate_admission_decisions_total",
			Help: "Admission decisions by outcome and analysis method.",
		}, []string{"kind", "method"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "filtergate_admission_score",
			Help:    "Normalized complexity score of analyzed queries.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		load: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "filtergate_admission_load_factor",
			Help: "Load factor observed at the most recent decision.",
		}),
	}
	for _, c := range []prometheus.Collector{s.decisions, s.scores, s.load} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusSink) Emit(_ context.Context, ev Event) {
	s.decisions.WithLabelValues(string(ev.Kind), string(ev.Analysis.Method)).Inc()
	s.scores.Observe(ev.NormalizedScore)
	s.load.Set(ev.LoadFactor)
}
