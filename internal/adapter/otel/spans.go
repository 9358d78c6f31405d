package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "aiwebengine-assistant"

// StartLoopSpan starts a span for one operator action driving the continuation loop.
func StartLoopSpan(ctx context.Context, sessionID, trigger string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "loop",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("loop.trigger", trigger),
		),
	)
}

// StartModelCallSpan starts a span for a single model backend round trip.
func StartModelCallSpan(ctx context.Context, sessionID string, messages int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "model.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("model.messages", messages),
		),
	)
}

// StartCommitSpan starts a span for committing a change to the backing store.
func StartCommitSpan(ctx context.Context, toolUseID, targetType, target, action string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "change.commit",
		trace.WithAttributes(
			attribute.String("tool_use.id", toolUseID),
			attribute.String("change.target_type", targetType),
			attribute.String("change.target", target),
			attribute.String("change.action", action),
		),
	)
}
