package observability

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	contextutils "supportapp/internal/utils"
)

// GinMiddleware creates OpenTelemetry middleware for Gin HTTP requests
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// GinMiddlewareWithErrorHandling creates OpenTelemetry middleware with automatic error attribute addition.
// The returned chain must be registered as a unit: router.Use(GinMiddlewareWithErrorHandling(name)...)
func GinMiddlewareWithErrorHandling(serviceName string) gin.HandlersChain {
	return gin.HandlersChain{otelgin.Middleware(serviceName), errorSpanAttributes}
}

// errorSpanAttributes runs inside the otelgin span and annotates it once the handlers finished
func errorSpanAttributes(c *gin.Context) {
	c.Next()

	span := trace.SpanFromContext(c.Request.Context())
	statusCode := c.Writer.Status()
	if statusCode < 400 || !span.IsRecording() {
		return
	}

	severity := determineErrorSeverity(statusCode, c.Errors)

	var errorMsg string
	switch {
	case statusCode >= 500:
		errorMsg = "server error"
	default:
		errorMsg = "client error"
	}

	var appErr *contextutils.AppError
	for _, ginErr := range c.Errors {
		if errors.As(ginErr.Err, &appErr) {
			errorMsg = appErr.Message
			break
		}
		errorMsg = ginErr.Error()
	}

	span.RecordError(errors.New(errorMsg), trace.WithStackTrace(true))
	span.SetStatus(codes.Error, errorMsg)

	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.path", c.Request.URL.Path),
		attribute.String("error.handler", c.HandlerName()),
		attribute.String("error.severity", severity),
	)

	if submissionID := contextutils.GetSubmissionIDFromContext(c.Request.Context()); submissionID != "" {
		span.SetAttributes(attribute.String("error.submission_id", submissionID))
	}

	// Add request body size for debugging
	if c.Request.ContentLength > 0 {
		span.SetAttributes(attribute.Int64("error.request_size", c.Request.ContentLength))
	}

	if appErr != nil {
		span.SetAttributes(
			attribute.String("error.code", string(appErr.Code)),
			attribute.Bool("error.retryable", contextutils.IsRetryable(appErr)),
		)
	}

	if statusCode >= 500 {
		span.SetAttributes(attribute.Bool("error.server_error", true))
	}
}

// determineErrorSeverity determines the severity level based on status code and error types
func determineErrorSeverity(statusCode int, errs []*gin.Error) string {
	// Check for AppError types first
	for _, ginErr := range errs {
		var appErr *contextutils.AppError
		if errors.As(ginErr.Err, &appErr) {
			return string(appErr.Severity)
		}
	}

	// Fallback to status code based severity
	switch {
	case statusCode >= 500:
		return string(contextutils.SeverityError)
	case statusCode >= 400:
		return string(contextutils.SeverityWarn)
	default:
		return string(contextutils.SeverityInfo)
	}
}
