package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filtergate/internal/complexity"
)

func sampleAnalysis() complexity.Analysis {
	return complexity.Analysis{
		Cost:            42,
		NormalizedScore: 27.5,
		Method:          complexity.MethodHeuristic,
	}
}

func TestNewEventCopiesMeasurements(t *testing.T) {
	ev := NewEvent(KindWarned, sampleAnalysis(), 0.4, nil)

	assert.NotEqual(t, ev.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, KindWarned, ev.Kind)
	assert.Equal(t, 42.0, ev.Cost)
	assert.Equal(t, 27.5, ev.NormalizedScore)
	assert.Equal(t, 0.4, ev.LoadFactor)
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	sink.Emit(context.Background(), NewEvent(KindAccepted, sampleAnalysis(), 0, nil))
	assert.Contains(t, buf.String(), `"level":"INFO"`)

	buf.Reset()
	sink.Emit(context.Background(), NewEvent(KindRejected, sampleAnalysis(), 0.9, nil))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"kind":"rejected"`)
}

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	sink.Emit(context.Background(), NewEvent(KindAccepted, sampleAnalysis(), 0.1, nil))
	sink.Emit(context.Background(), NewEvent(KindAccepted, sampleAnalysis(), 0.2, nil))
	sink.Emit(context.Background(), NewEvent(KindRejected, sampleAnalysis(), 0.3, nil))

	assert.Equal(t, 2.0, promtest.ToFloat64(sink.decisions.WithLabelValues("accepted", "heuristic")))
	assert.Equal(t, 1.0, promtest.ToFloat64(sink.decisions.WithLabelValues("rejected", "heuristic")))
	assert.Equal(t, 0.3, promtest.ToFloat64(sink.load))
}

func TestMultiFansOut(t *testing.T) {
	var got []Kind
	first := sinkFunc(func(ev Event) { got = append(got, ev.Kind) })
	second := sinkFunc(func(ev Event) { got = append(got, ev.Kind) })

	Multi{first, second}.Emit(context.Background(), NewEvent(KindWarned, sampleAnalysis(), 0, nil))
	assert.Equal(t, []Kind{KindWarned, KindWarned}, got)
}

type sinkFunc func(Event)

func (f sinkFunc) Emit(_ context.Context, ev Event) { f(ev) }
