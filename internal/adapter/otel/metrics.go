package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	meterName  = "chatpilot"
	tracerName = "chatpilot"
)

// Metrics holds all ChatPilot metric instruments.
type Metrics struct {
	TurnsStarted   metric.Int64Counter
	TurnsCompleted metric.Int64Counter
	TurnsFailed    metric.Int64Counter
	EventsApplied  metric.Int64Counter
	ToolCalls      metric.Int64Counter
	TurnDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TurnsStarted, err = meter.Int64Counter("chatpilot.turns.started",
		metric.WithDescription("Number of streaming turns started"))
	if err != nil {
		return nil, err
	}

	m.TurnsCompleted, err = meter.Int64Counter("chatpilot.turns.completed",
		metric.WithDescription("Number of streaming turns completed"))
	if err != nil {
		return nil, err
	}

	m.TurnsFailed, err = meter.Int64Counter("chatpilot.turns.failed",
		metric.WithDescription("Number of streaming turns failed"))
	if err != nil {
		return nil, err
	}

	m.EventsApplied, err = meter.Int64Counter("chatpilot.events.applied",
		metric.WithDescription("Number of AG-UI events applied by the reducer"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("chatpilot.toolcalls",
		metric.WithDescription("Number of tool calls observed in turns"))
	if err != nil {
		return nil, err
	}

	m.TurnDuration, err = meter.Float64Histogram("chatpilot.turn.duration_seconds",
		metric.WithDescription("Turn duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// StartTurnSpan starts a span for one streaming turn.
func StartTurnSpan(ctx context.Context, conversationID, messageID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("message.id", messageID),
		),
	)
}
