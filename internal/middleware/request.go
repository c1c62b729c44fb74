package middleware

import (
	"errors"
	"net/http"
	"time"

	"supportapp/internal/observability"
	contextutils "supportapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SubmissionIDHeader carries the submission id on requests and responses
const SubmissionIDHeader = "X-Submission-ID"

// SubmissionIDMiddleware tags every request with a submission id, reusing the client's when it sent one
func SubmissionIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SubmissionIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(contextutils.WithSubmissionID(c.Request.Context(), id))
		c.Header(SubmissionIDHeader, id)
		c.Next()
	}
}

// RequestLoggingMiddleware logs one line per request through the observability logger
func RequestLoggingMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}
		if id := contextutils.GetSubmissionIDFromContext(c.Request.Context()); id != "" {
			fields["submission_id"] = id
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error(c.Request.Context(), "Request failed", errors.New(c.Errors.String()), fields)
		case c.Writer.Status() >= 400:
			logger.Warn(c.Request.Context(), "Request rejected", fields)
		default:
			logger.Info(c.Request.Context(), "Request completed", fields)
		}
	}
}

// MaxBodySize caps request bodies at limit bytes. Reads past the limit fail with *http.MaxBytesError.
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			writeError(c, http.StatusRequestEntityTooLarge, contextutils.NewAppError(
				contextutils.ErrorCodeRequestTooLarge,
				contextutils.SeverityWarn,
				"Request body is too large",
				"",
			))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
