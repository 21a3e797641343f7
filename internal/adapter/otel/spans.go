package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "claimdesk"

// StartTurnSpan starts a span for one saga turn.
func StartTurnSpan(ctx context.Context, sessionID string, userTurn int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("turn.ordinal", userTurn),
		),
	)
}

// StartAgentSpan starts a span for one agent invocation.
func StartAgentSpan(ctx context.Context, agentName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "agent."+agentName,
		trace.WithAttributes(attribute.String("agent.name", agentName)),
	)
}

// StartInferenceSpan starts a span for a collaborator call.
func StartInferenceSpan(ctx context.Context, agentName, model string, actions int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "inference",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("agent.name", agentName),
			attribute.String("inference.model", model),
			attribute.Int("inference.actions", actions),
		),
	)
}

// StartAuditPublishSpan starts a span for mirroring audit entries to a sink.
func StartAuditPublishSpan(ctx context.Context, sink string, entries int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "audit.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("audit.sink", sink),
			attribute.Int("audit.entries", entries),
		),
	)
}
