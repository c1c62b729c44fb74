// Package submission sends a collected support ticket to the ticket submission endpoint.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"supportapp/internal/attachments"
	"supportapp/internal/config"
	"supportapp/internal/diagnostics"
	"supportapp/internal/models"
	"supportapp/internal/observability"
	contextutils "supportapp/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSubmitURL is used when no submit URL is configured
const DefaultSubmitURL = "http://localhost:8080/v1/support/tickets"

// maxErrorBodyBytes bounds how much of an error response is read
const maxErrorBodyBytes = 64 << 10

// Result is the outcome of one submission attempt
type Result struct {
	Success  bool
	TicketID string
	Error    string
}

// Client submits tickets over HTTP
type Client struct {
	submitURL  string
	httpClient *http.Client
	limits     attachments.Limits
	env        diagnostics.Environment
	errors     *diagnostics.ErrorCapture
	logger     *observability.Logger
	now        func() time.Time
}

// Option customises a Client
type Option func(*Client)

// WithEnvironment captures a diagnostic snapshot from env when the payload carries none
func WithEnvironment(env diagnostics.Environment) Option {
	return func(c *Client) { c.env = env }
}

// WithErrorCapture attaches the captured runtime errors to every submission
func WithErrorCapture(capture *diagnostics.ErrorCapture) Option {
	return func(c *Client) { c.errors = capture }
}

// WithHTTPClient replaces the instrumented default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a submission client from configuration
func NewClient(cfg *config.Config, logger *observability.Logger, opts ...Option) *Client {
	return NewClientWithURL(cfg, logger, cfg.Client.SubmitURL, opts...)
}

// NewClientWithURL creates a submission client posting to submitURL (for testing)
func NewClientWithURL(cfg *config.Config, logger *observability.Logger, submitURL string, opts ...Option) *Client {
	if submitURL == "" {
		submitURL = DefaultSubmitURL
	}
	timeout := cfg.Client.Timeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	c := &Client{
		submitURL: submitURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
			),
		},
		limits: attachments.LimitsFromConfig(cfg.Limits),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends payload and the attachments in set as one request. It never makes a
// network call when consent is missing or an attachment exceeds its limit.
func (c *Client) Submit(ctx context.Context, payload models.SupportTicketPayload, set *attachments.Set, consentGiven bool) Result {
	ctx, span := observability.TraceSubmissionFunction(ctx, "submit",
		attribute.String("ticket.category", string(payload.IssueType)),
	)
	var err error
	defer observability.FinishSpan(span, &err)

	if !consentGiven {
		err = contextutils.ErrConsentRequired
		return Result{Error: contextutils.ErrConsentRequired.Message}
	}

	req := models.TicketSubmission{Payload: payload, Screenshots: []models.Attachment{}}
	if set != nil {
		req.Screenshots = append(req.Screenshots, set.Screenshots()...)
		req.ScreenRecording = set.Recording()
		req.HarFile = set.NetworkLog()
	}
	if err = c.limits.CheckAll(req.Screenshots, req.ScreenRecording, req.HarFile); err != nil {
		return Result{Error: contextutils.UserMessage(err)}
	}
	span.SetAttributes(observability.AttributeAttachmentCount(countAttachments(req)))

	c.enrich(&req.Payload, consentGiven)

	body, err := json.Marshal(req)
	if err != nil {
		err = contextutils.WrapError(err, "failed to encode ticket")
		return Result{Error: "failed to encode ticket"}
	}

	result, err := c.post(ctx, body)
	if err != nil {
		c.logger.Error(ctx, "Support ticket submission failed", err, map[string]interface{}{
			"submit_url": c.submitURL,
		})
		return Result{Error: contextutils.UserMessage(err)}
	}
	span.SetAttributes(observability.AttributeIssueKey(result.TicketID))
	return result
}

// enrich adds what was captured for the reporter
func (c *Client) enrich(p *models.SupportTicketPayload, consentGiven bool) {
	p.ConsentGiven = consentGiven
	if p.SubmittedAt.IsZero() {
		p.SubmittedAt = c.now().UTC()
	}
	if p.Environment == nil && c.env != nil {
		snapshot := diagnostics.Capture(c.env)
		p.Environment = &snapshot
	}
	if c.errors != nil {
		p.CapturedErrors = c.errors.CapturedErrors()
		p.CapturedErrorsText = diagnostics.FormatErrors(p.CapturedErrors)
	}
}

func (c *Client) post(ctx context.Context, body []byte) (Result, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.submitURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, contextutils.WrapError(err, "failed to create submission request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "supportapp/1.0")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeServiceUnavailable,
			contextutils.SeverityError,
			"Could not reach the support service",
			"",
			err,
		)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return Result{}, contextutils.WrapError(err, "failed to read submission response")
	}

	c.logger.Info(ctx, "Support ticket submission finished", map[string]interface{}{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, contextutils.NewAppError(
			contextutils.ErrorCodeSubmissionFailed,
			contextutils.SeverityError,
			ExtractErrorMessage(respBody, resp.StatusCode),
			"",
		)
	}

	var out models.SubmissionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Result{}, contextutils.WrapError(err, "failed to decode submission response")
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "ticket was not created"
		}
		return Result{Error: msg}, nil
	}
	return Result{Success: true, TicketID: out.IssueKey}, nil
}

// ExtractErrorMessage returns the error or message field of a JSON error body,
// else a status coded fallback.
func ExtractErrorMessage(body []byte, status int) string {
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		for _, key := range []string{"error", "message"} {
			if s, ok := decoded[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}

func countAttachments(req models.TicketSubmission) int {
	n := len(req.Screenshots)
	if req.ScreenRecording != nil {
		n++
	}
	if req.HarFile != nil {
		n++
	}
	return n
}
