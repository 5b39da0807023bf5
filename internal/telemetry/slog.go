package telemetry

import (
	"context"
	"log/slog"
)

// SlogSink writes each event as one structured log record. Rejections
// log at Warn so operators see them without raising verbosity.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink builds a sink over the given logger, defaulting to
// slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, ev Event) {
	level := slog.LevelInfo
	if ev.Kind == KindRejected {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "admission decision",
		slog.String("event_id", ev.ID.String()),
		slog.String("kind", string(ev.Kind)),
		slog.String("method", string(ev.Analysis.Method)),
		slog.Float64("cost", ev.Cost),
		slog.Float64("normalized_score", ev.NormalizedScore),
		slog.Float64("load_factor", ev.LoadFactor),
	)
}
