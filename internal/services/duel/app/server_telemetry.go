package server

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/louisbranch/wordduel/internal/services/duel/app"

// duelMetrics holds the counters the duel server reports.
type duelMetrics struct {
	roomsStarted      metric.Int64Counter
	roomsFinished     metric.Int64Counter
	activeRooms       metric.Int64UpDownCounter
	guessesApplied    metric.Int64Counter
	guessesDiscarded  metric.Int64Counter
	scoreHintMismatch metric.Int64Counter
	undelivered       metric.Int64Counter
}

func newDuelMetrics(provider metric.MeterProvider) (*duelMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	var (
		m   duelMetrics
		err error
	)
	if m.roomsStarted, err = meter.Int64Counter("wordduel.rooms.started",
		metric.WithDescription("Rooms that reached the active phase.")); err != nil {
		return nil, fmt.Errorf("rooms started counter: %w", err)
	}
	if m.roomsFinished, err = meter.Int64Counter("wordduel.rooms.finished",
		metric.WithDescription("Rooms that finished, by reason.")); err != nil {
		return nil, fmt.Errorf("rooms finished counter: %w", err)
	}
	if m.activeRooms, err = meter.Int64UpDownCounter("wordduel.rooms.active",
		metric.WithDescription("Rooms currently in the active phase.")); err != nil {
		return nil, fmt.Errorf("active rooms counter: %w", err)
	}
	if m.guessesApplied, err = meter.Int64Counter("wordduel.guesses",
		metric.WithDescription("Guesses evaluated by a room, by status.")); err != nil {
		return nil, fmt.Errorf("guesses counter: %w", err)
	}
	if m.guessesDiscarded, err = meter.Int64Counter("wordduel.guesses.discarded",
		metric.WithDescription("Malformed guesses dropped without a reply.")); err != nil {
		return nil, fmt.Errorf("discarded guesses counter: %w", err)
	}
	if m.scoreHintMismatch, err = meter.Int64Counter("wordduel.guesses.score_hint_mismatch",
		metric.WithDescription("Guesses whose client score hint disagreed with the room.")); err != nil {
		return nil, fmt.Errorf("score hint counter: %w", err)
	}
	if m.undelivered, err = meter.Int64Counter("wordduel.events.undelivered",
		metric.WithDescription("Server events dropped because the recipient was unreachable.")); err != nil {
		return nil, fmt.Errorf("undelivered counter: %w", err)
	}
	return &m, nil
}

func (m *duelMetrics) roomStarted(ctx context.Context) {
	m.roomsStarted.Add(ctx, 1)
	m.activeRooms.Add(ctx, 1)
}

func (m *duelMetrics) roomFinished(ctx context.Context, reason string) {
	m.roomsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	m.activeRooms.Add(ctx, -1)
}

func (m *duelMetrics) guessEvaluated(ctx context.Context, status string) {
	m.guessesApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *duelMetrics) guessDiscarded(ctx context.Context) {
	m.guessesDiscarded.Add(ctx, 1)
}

func (m *duelMetrics) scoreHintMismatched(ctx context.Context) {
	m.scoreHintMismatch.Add(ctx, 1)
}

func (m *duelMetrics) eventUndelivered(ctx context.Context, event string) {
	m.undelivered.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func newTracer(provider trace.TracerProvider) trace.Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return provider.Tracer(instrumentationName)
}
