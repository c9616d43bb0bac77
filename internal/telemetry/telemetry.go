// Package telemetry opens tracing spans around repository operations.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/lemmego/criteria"

// Start opens a span named "<adapter>.<op>" for the given repository. The
// caller must pass the returned span to End.
func Start(ctx context.Context, adapter, repository, op string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, adapter+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("criteria.adapter", adapter),
			attribute.String("criteria.repository", repository),
		),
	)
}

// End records err on the span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
