package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "simpledigital"

// StartEventSpan starts a span for handling one lifecycle event.
func StartEventSpan(ctx context.Context, event, eventID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "lifecycle."+event,
		trace.WithAttributes(
			attribute.String("event.name", event),
			attribute.String("event.id", eventID),
		),
	)
}

// StartSendSpan starts a span for a settings delivery.
func StartSendSpan(ctx context.Context, keys int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "settings.send",
		trace.WithAttributes(attribute.Int("settings.keys", keys)),
	)
}

// FailSpan records err on span and marks it failed.
func FailSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
