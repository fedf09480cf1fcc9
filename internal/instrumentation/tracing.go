package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartToolSpan starts a span for a tool invocation.
func StartToolSpan(ctx context.Context, tracer trace.Tracer, tool string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "mcp.tool."+tool,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("mcp.tool", tool)),
	)
}

// SetSpanError marks the span as failed with the given error.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanSuccess marks the span as completed successfully.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
