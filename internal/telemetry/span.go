package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by recordsync spans.
const (
	AttrRecordType   = attribute.Key("record.type")
	AttrOperationID  = attribute.Key("operation.id")
	AttrContinuation = attribute.Key("pagination.continuation")
	AttrPage         = attribute.Key("pagination.page")
	AttrPageSize     = attribute.Key("pagination.limit")
	AttrHasCursor    = attribute.Key("pagination.has_cursor")
)

// StartSpan starts a span on tracer, or returns the span already in ctx
// when tracer is nil.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks it failed. The status
// description stays generic; the error text is kept in the exception event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
