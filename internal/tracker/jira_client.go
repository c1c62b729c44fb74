package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"supportapp/internal/config"
	"supportapp/internal/models"
	"supportapp/internal/observability"
	contextutils "supportapp/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Jira REST API constants
const (
	// IssuePath creates issues
	IssuePath = "/rest/api/3/issue"
	// AttachmentPathFormat uploads attachments to an issue
	AttachmentPathFormat = "/rest/api/3/issue/%s/attachments"
	// BrowsePathFormat is the human readable issue page
	BrowsePathFormat = "/browse/%s"
	// maxResponseBytes bounds how much of a tracker response is read
	maxResponseBytes = 1 << 20
)

// JiraClient creates issues and uploads their attachments
type JiraClient struct {
	config     *config.TrackerConfig
	httpClient *http.Client
	logger     *observability.Logger
	metrics    *observability.TicketMetrics
	baseURL    string // Allow overriding the API endpoint for testing
}

type createIssueRequest struct {
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Project     keyRef   `json:"project"`
	Summary     string   `json:"summary"`
	Description Node     `json:"description"`
	IssueType   nameRef  `json:"issuetype"`
	Labels      []string `json:"labels,omitempty"`
}

type keyRef struct {
	Key string `json:"key"`
}

type nameRef struct {
	Name string `json:"name"`
}

type createIssueResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

type errorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
	Message       string            `json:"message"`
}

// NewJiraClient creates a tracker client from configuration
func NewJiraClient(cfg *config.Config, logger *observability.Logger, metrics *observability.TicketMetrics) *JiraClient {
	return NewJiraClientWithURL(cfg, logger, metrics, cfg.Tracker.BaseURL)
}

// NewJiraClientWithURL creates a tracker client with a custom base URL (for testing)
func NewJiraClientWithURL(cfg *config.Config, logger *observability.Logger, metrics *observability.TicketMetrics, baseURL string) *JiraClient {
	return &JiraClient{
		config: &cfg.Tracker,
		httpClient: &http.Client{
			Timeout: config.TrackerRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
			),
		},
		logger:  logger,
		metrics: metrics,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// CloseIdleConnections releases pooled connections to the tracker
func (c *JiraClient) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// BrowseURL returns the page of an issue
func (c *JiraClient) BrowseURL(key string) string {
	return c.baseURL + fmt.Sprintf(BrowsePathFormat, key)
}

// CreateTicket creates the issue, then uploads every attachment. A failed creation is
// returned; failed uploads are logged and counted, and the ticket is returned regardless.
func (c *JiraClient) CreateTicket(ctx context.Context, summary string, description *Document, attachments []models.Attachment) (result *models.CreatedTicket, err error) {
	ctx, span := observability.TraceTrackerFunction(ctx, "create_ticket",
		attribute.String("tracker.project", c.config.ProjectKey),
		observability.AttributeAttachmentCount(len(attachments)),
	)
	defer observability.FinishSpan(span, &err)

	if !c.config.Enabled || c.baseURL == "" || c.config.APIToken == "" || c.config.ProjectKey == "" {
		err = contextutils.NewAppError(
			contextutils.ErrorCodeServiceUnavailable,
			contextutils.SeverityError,
			"Issue tracker integration is not configured",
			"",
		)
		return nil, err
	}

	key, err := c.createIssue(ctx, summary, description)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttributeIssueKey(key))

	if failed := c.uploadAll(ctx, key, attachments); failed > 0 {
		c.metrics.UploadFailed(ctx, failed)
		span.SetAttributes(attribute.Int("tracker.uploads_failed", failed))
	}

	return &models.CreatedTicket{Key: key, BrowseURL: c.BrowseURL(key)}, nil
}

func (c *JiraClient) createIssue(ctx context.Context, summary string, description *Document) (string, error) {
	if description == nil {
		description = NewDocument()
	}
	issueType := c.config.IssueType
	if issueType == "" {
		issueType = config.DefaultIssueType
	}
	reqBody := createIssueRequest{Fields: issueFields{
		Project:     keyRef{Key: c.config.ProjectKey},
		Summary:     summary,
		Description: description.ADF(),
		IssueType:   nameRef{Name: issueType},
		Labels:      c.config.Labels,
	}}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to marshal issue request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+IssuePath, bytes.NewReader(jsonData))
	if err != nil {
		return "", contextutils.WrapError(err, "failed to create issue request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	start := time.Now()
	status, body, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}

	c.logger.Info(ctx, "Issue tracker create request finished", map[string]interface{}{
		"status":      status,
		"project":     c.config.ProjectKey,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if status < 200 || status > 299 {
		return "", contextutils.NewAppError(
			contextutils.ErrorCodeTrackerRequestFailed,
			contextutils.SeverityError,
			extractTrackerError(body, status),
			fmt.Sprintf("status %d", status),
		)
	}

	var created createIssueResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", contextutils.WrapError(err, "failed to unmarshal issue response")
	}
	if created.Key == "" {
		return "", contextutils.NewAppError(
			contextutils.ErrorCodeTrackerRequestFailed,
			contextutils.SeverityError,
			"Issue tracker did not return an issue key",
			"",
		)
	}
	return created.Key, nil
}

// uploadAll uploads attachments concurrently. Every upload is independent: a failure
// never cancels the others and is not retried. It returns the number that failed.
func (c *JiraClient) uploadAll(ctx context.Context, key string, attachments []models.Attachment) int {
	if len(attachments) == 0 {
		return 0
	}
	limit := c.config.UploadConcurrency
	if limit < 1 {
		limit = config.DefaultUploadConcurrency
	}

	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(limit)
	for _, a := range attachments {
		g.Go(func() error {
			if err := c.UploadAttachment(ctx, key, a); err != nil {
				failed.Add(1)
				c.logger.Error(ctx, "Attachment upload failed", err, map[string]interface{}{
					"issue_key":  key,
					"attachment": a.Name,
					"size":       a.Len(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(failed.Load())
}

// UploadAttachment uploads one attachment to an existing issue
func (c *JiraClient) UploadAttachment(ctx context.Context, key string, a models.Attachment) (err error) {
	ctx, span := observability.TraceTrackerFunction(ctx, "upload_attachment",
		observability.AttributeIssueKey(key),
		observability.AttributeAttachmentName(a.Name),
	)
	defer observability.FinishSpan(span, &err)

	mp := NewMultipartBuilder()
	mp.AddFile("file", a.Name, a.MediaType, a.Data)
	body := mp.Bytes()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+fmt.Sprintf(AttachmentPathFormat, key), bytes.NewReader(body))
	if err != nil {
		return contextutils.WrapError(err, "failed to create upload request")
	}
	req.Header.Set("Content-Type", mp.ContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	status, respBody, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return contextutils.NewAppError(
			contextutils.ErrorCodeTrackerRequestFailed,
			contextutils.SeverityWarn,
			extractTrackerError(respBody, status),
			fmt.Sprintf("upload of %q returned status %d", a.Name, status),
		)
	}

	c.logger.Debug(ctx, "Attachment uploaded", map[string]interface{}{
		"issue_key":  key,
		"attachment": a.Name,
		"size":       a.Len(),
	})
	return nil
}

func (c *JiraClient) authorize(req *http.Request) {
	req.SetBasicAuth(c.config.Email, c.config.APIToken)
	req.Header.Set("User-Agent", "supportapp/1.0")
}

func (c *JiraClient) do(ctx context.Context, req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeTrackerRequestFailed,
			contextutils.SeverityError,
			"Could not reach the issue tracker",
			"",
			err,
		)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, contextutils.WrapError(err, "failed to read issue tracker response")
	}
	return resp.StatusCode, body, nil
}

// extractTrackerError returns the tracker's own error text, else a status coded message
func extractTrackerError(body []byte, status int) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		var parts []string
		for _, m := range e.ErrorMessages {
			if strings.TrimSpace(m) != "" {
				parts = append(parts, m)
			}
		}
		fields := make([]string, 0, len(e.Errors))
		for field := range e.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			parts = append(parts, field+": "+e.Errors[field])
		}
		if len(parts) == 0 && e.Message != "" {
			parts = append(parts, e.Message)
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	return fmt.Sprintf("Issue tracker returned status %d", status)
}
