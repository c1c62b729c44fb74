package observability

import (
	"context"

	contextutils "supportapp/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "support-app"

var globalTracer trace.Tracer

// InitGlobalTracer binds the package tracer to the current global provider
func InitGlobalTracer() {
	globalTracer = otel.Tracer(tracerName)
}

// GetGlobalTracer returns the package tracer, binding it lazily
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		globalTracer = otel.Tracer(tracerName)
	}
	return globalTracer
}

// TraceFunction starts a span named "<component>.<function>"
func TraceFunction(ctx context.Context, component, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetGlobalTracer().Start(ctx, component+"."+functionName, trace.WithAttributes(attributes...))
}

// TraceHandlerFunction starts a span for an HTTP handler
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceTicketFunction starts a span for the support ticket service
func TraceTicketFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "ticket", functionName, attributes...)
}

// TraceTrackerFunction starts a span for the issue tracker client
func TraceTrackerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "tracker", functionName, attributes...)
}

// TraceSubmissionFunction starts a span for the submission client
func TraceSubmissionFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "submission", functionName, attributes...)
}

// TraceEmailFunction starts a span for the notifier
func TraceEmailFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "email", functionName, attributes...)
}

// FinishSpan ends a span and records the error errPtr points to, with its error code.
// Use with a named error return: `defer observability.FinishSpan(span, &err)`
func FinishSpan(span trace.Span, errPtr *error) {
	if span == nil {
		return
	}
	if errPtr != nil && *errPtr != nil {
		err := *errPtr
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.code", string(contextutils.GetErrorCode(err))))
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// AttributeIssueKey returns a tracing attribute for a tracker issue key.
func AttributeIssueKey(key string) attribute.KeyValue {
	return attribute.String("issue.key", key)
}

// AttributeCategory returns a tracing attribute for a ticket category.
func AttributeCategory(category string) attribute.KeyValue {
	return attribute.String("ticket.category", category)
}

// AttributeAttachmentCount returns a tracing attribute for the number of attachments.
func AttributeAttachmentCount(n int) attribute.KeyValue {
	return attribute.Int("ticket.attachment_count", n)
}

// AttributeAttachmentName returns a tracing attribute for an attachment file name.
func AttributeAttachmentName(name string) attribute.KeyValue {
	return attribute.String("attachment.name", name)
}

// AttributeSubmissionID returns a tracing attribute for a submission id.
func AttributeSubmissionID(id string) attribute.KeyValue {
	return attribute.String("submission.id", id)
}
