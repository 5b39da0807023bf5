// Package telemetry carries admission outcomes to observers. Emission
// is one-way and best-effort: no sink response is awaited, and a sink
// failure never affects the decision that produced the event.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/filtergate/internal/complexity"
)

// Kind is the admission outcome an event reports.
type Kind string

const (
	KindAccepted Kind = "accepted"
	KindWarned   Kind = "warned"
	KindRejected Kind = "rejected"
)

// Event is one admission decision. Cost, NormalizedScore and
// LoadFactor are the measurements; the full analysis and load snapshot
// ride along as metadata.
type Event struct {
	ID   uuid.UUID `json:"id"`
	Time time.Time `json:"time"`
	Kind Kind      `json:"kind"`

	Cost            float64 `json:"cost"`
	NormalizedScore float64 `json:"normalizedScore"`
	LoadFactor      float64 `json:"loadFactor"`

	Analysis complexity.Analysis `json:"analysis"`
	Snapshot any                 `json:"snapshot,omitempty"`
}

// NewEvent stamps an event with identity and time.
func NewEvent(kind Kind, analysis complexity.Analysis, loadFactor float64, snapshot any) Event {
	return Event{
		ID:              uuid.New(),
		Time:            time.Now().UTC(),
		Kind:            kind,
		Cost:            analysis.Cost,
		NormalizedScore: analysis.NormalizedScore,
		LoadFactor:      loadFactor,
		Analysis:        analysis,
		Snapshot:        snapshot,
	}
}

// Sink receives admission events.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

// Multi fans one event out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}
