package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"supportapp/internal/models"
	"supportapp/internal/normalize"
	"supportapp/internal/observability"
	"supportapp/internal/serviceinterfaces"
	contextutils "supportapp/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// SupportHandler accepts support ticket submissions
type SupportHandler struct {
	supportService serviceinterfaces.SupportService
	logger         *observability.Logger
}

// NewSupportHandler creates a new SupportHandler
func NewSupportHandler(supportService serviceinterfaces.SupportService, logger *observability.Logger) *SupportHandler {
	return &SupportHandler{
		supportService: supportService,
		logger:         logger,
	}
}

// SubmitTicket handles POST /v1/support/tickets and the legacy POST /api/support-ticket.
func (h *SupportHandler) SubmitTicket(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_ticket")
	defer observability.FinishSpan(span, nil)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Warn(ctx, "Failed to read ticket request body", map[string]interface{}{"error": err.Error()})
		HandleAppError(c, err)
		return
	}

	raw := RequestEnvelope(body)
	decoded, source := normalize.Decode(raw)
	span.SetAttributes(attribute.String("ticket.body_source", string(source)))

	req := normalize.Canonical(decoded, c.Request.Method)
	ticket, err := h.supportService.SubmitTicket(ctx, req)
	if err != nil {
		status := mapErrorCodeToHTTPStatus(contextutils.GetErrorCode(err))
		fields := map[string]interface{}{
			"source": string(source),
			"status": status,
		}
		if status >= http.StatusInternalServerError {
			h.logger.Error(ctx, "Support ticket submission failed", err, fields)
		} else {
			fields["error"] = err.Error()
			h.logger.Warn(ctx, "Support ticket rejected", fields)
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SubmissionResponse{Success: true, IssueKey: ticket.Key})
}

// RequestEnvelope turns a raw request body into the map the normalizer reads.
// A JSON object is used as is. Anything else, including a JSON encoded string,
// is carried as bodyRaw so the normalizer can decode it.
func RequestEnvelope(body []byte) map[string]interface{} {
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		switch v := decoded.(type) {
		case map[string]interface{}:
			return v
		case string:
			return map[string]interface{}{string(normalize.SourceBodyRaw): v}
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return map[string]interface{}{}
	}
	return map[string]interface{}{string(normalize.SourceBodyRaw): text}
}
