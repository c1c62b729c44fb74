// Package services provides the business logic of the support ticket pipeline.
package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"supportapp/internal/attachments"
	"supportapp/internal/config"
	"supportapp/internal/diagnostics"
	"supportapp/internal/har"
	"supportapp/internal/models"
	"supportapp/internal/observability"
	"supportapp/internal/serviceinterfaces"
	"supportapp/internal/tracker"
	contextutils "supportapp/internal/utils"

	"github.com/microcosm-cc/bluemonday"
)

// SupportService validates submissions and files them as tickets
type SupportService struct {
	cfg      *config.Config
	tracker  serviceinterfaces.TicketTracker
	notifier serviceinterfaces.TicketNotifier
	schemas  *SchemaLoader
	limits   attachments.Limits
	policy   *bluemonday.Policy
	metrics  *observability.TicketMetrics
	logger   *observability.Logger
}

// Ensure SupportService implements the SupportService interface
var _ serviceinterfaces.SupportService = (*SupportService)(nil)

// NewSupportService creates a SupportService. notifier and metrics may be nil.
func NewSupportService(cfg *config.Config, tr serviceinterfaces.TicketTracker, notifier serviceinterfaces.TicketNotifier, metrics *observability.TicketMetrics, logger *observability.Logger) (*SupportService, error) {
	if tr == nil {
		return nil, contextutils.ErrorWithContextf("NewSupportService: tracker is nil")
	}
	if logger == nil {
		return nil, contextutils.ErrorWithContextf("NewSupportService: logger is nil")
	}
	schemas, err := LoadEmbeddedSchemas()
	if err != nil {
		return nil, err
	}
	return &SupportService{
		cfg:      cfg,
		tracker:  tr,
		notifier: notifier,
		schemas:  schemas,
		limits:   attachments.LimitsFromConfig(cfg.Limits),
		policy:   bluemonday.StrictPolicy(),
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// SubmitTicket validates req, sanitizes the network log, files the ticket and notifies
func (s *SupportService) SubmitTicket(ctx context.Context, req models.NormalizedRequest) (result *models.CreatedTicket, err error) {
	ctx, span := observability.TraceTicketFunction(ctx, "submit_ticket",
		observability.AttributeSubmissionID(contextutils.GetSubmissionIDFromContext(ctx)),
	)
	defer observability.FinishSpan(span, &err)
	defer func() {
		if err != nil {
			s.metrics.TicketFailed(ctx, string(contextutils.GetErrorCode(err)))
		}
	}()

	if err = s.schemas.ValidateData(schemaDocument(req), TicketRequestSchema); err != nil {
		return nil, err
	}

	payload, err := decodePayload(req.Payload)
	if err != nil {
		return nil, err
	}
	if err = ValidatePayload(payload); err != nil {
		return nil, err
	}
	s.clean(&payload)
	span.SetAttributes(observability.AttributeCategory(string(payload.IssueType)))

	// The network log is size checked as received, then sanitized before anything else looks at it
	var networkLog *models.Attachment
	if req.HarFile != nil {
		a, decodeErr := DecodeAttachment(req.HarFile)
		if decodeErr != nil {
			return nil, contextutils.WrapError(decodeErr, "invalid network log")
		}
		if err = s.limits.CheckNetworkLog(a); err != nil {
			return nil, err
		}
		clean := har.SanitizeAttachment(a)
		networkLog = &clean
	}

	files, err := s.decodeAttachments(req, networkLog)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttributeAttachmentCount(len(files)))

	summary := BuildSummary(payload, s.summaryLimit())
	description := BuildDescription(payload, files)

	ticket, err := s.tracker.CreateTicket(ctx, summary, description, files)
	if err != nil {
		s.logger.Error(ctx, "Failed to create support ticket", err, map[string]interface{}{
			"category":    string(payload.IssueType),
			"attachments": len(files),
		})
		return nil, err
	}
	span.SetAttributes(observability.AttributeIssueKey(ticket.Key))
	s.metrics.TicketCreated(ctx, string(payload.IssueType))

	s.logger.Info(ctx, "Support ticket created", map[string]interface{}{
		"issue_key":   ticket.Key,
		"category":    string(payload.IssueType),
		"attachments": len(files),
		"reporter":    contextutils.MaskEmail(payload.UserEmail),
	})

	s.notify(ctx, ticket, summary, description, payload)
	return ticket, nil
}

// notify never fails the submission
func (s *SupportService) notify(ctx context.Context, ticket *models.CreatedTicket, summary string, description *tracker.Document, p models.SupportTicketPayload) {
	if s.notifier == nil || !s.notifier.IsEnabled() {
		return
	}
	err := s.notifier.NotifyTicketCreated(ctx, models.TicketNotification{
		TicketID:    ticket.Key,
		BrowseURL:   ticket.BrowseURL,
		Summary:     summary,
		Description: description.PlainText(),
		UserEmail:   p.UserEmail,
		Environment: p.Environment,
		Errors:      p.CapturedErrors,
	})
	if err != nil {
		s.logger.Warn(ctx, "Failed to send ticket notification", map[string]interface{}{
			"issue_key": ticket.Key,
			"error":     err.Error(),
		})
	}
}

func (s *SupportService) summaryLimit() int {
	if s.cfg.Limits.MaxSummaryCharacters > 0 {
		return s.cfg.Limits.MaxSummaryCharacters
	}
	return config.DefaultMaxSummaryCharacters
}

func (s *SupportService) decodeAttachments(req models.NormalizedRequest, networkLog *models.Attachment) ([]models.Attachment, error) {
	screenshots := make([]models.Attachment, 0, len(req.Screenshots))
	for i, raw := range req.Screenshots {
		a, err := DecodeAttachment(raw)
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "invalid screenshot %d", i+1)
		}
		screenshots = append(screenshots, a)
	}

	var recording *models.Attachment
	if req.ScreenRecording != nil {
		a, err := DecodeAttachment(req.ScreenRecording)
		if err != nil {
			return nil, contextutils.WrapError(err, "invalid screen recording")
		}
		recording = &a
	}

	if err := s.limits.CheckAll(screenshots, recording, networkLog); err != nil {
		return nil, err
	}

	files := screenshots
	if recording != nil {
		files = append(files, *recording)
	}
	if networkLog != nil {
		files = append(files, *networkLog)
	}
	return files, nil
}

// clean strips markup from the free text fields
func (s *SupportService) clean(p *models.SupportTicketPayload) {
	strip := func(v string) string {
		return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
	}
	p.PageURL = strip(p.PageURL)
	p.WhatTryingToDo = strip(p.WhatTryingToDo)
	p.WhatActuallyHappened = strip(p.WhatActuallyHappened)
	p.ErrorMessage = strip(p.ErrorMessage)
	p.UserEmail = strings.TrimSpace(p.UserEmail)
}

func schemaDocument(req models.NormalizedRequest) map[string]interface{} {
	return map[string]interface{}{
		"method":          req.Method,
		"payload":         req.Payload,
		"screenshots":     req.Screenshots,
		"screenRecording": req.ScreenRecording,
		"harFile":         req.HarFile,
	}
}

func decodePayload(raw map[string]interface{}) (models.SupportTicketPayload, error) {
	var p models.SupportTicketPayload
	data, err := json.Marshal(raw)
	if err != nil {
		return p, contextutils.WrapError(err, "failed to marshal payload")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeValidationFailed,
			contextutils.SeverityWarn,
			"Invalid ticket payload",
			err.Error(),
			err,
		)
	}
	return p, nil
}

// ValidatePayload applies the rules every ticket must satisfy
func ValidatePayload(p models.SupportTicketPayload) error {
	if !p.ConsentGiven {
		return contextutils.ErrConsentRequired
	}
	if !p.IssueType.Valid() {
		return contextutils.NewAppError(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			fmt.Sprintf("Unknown issue category %q", p.IssueType),
			"",
		)
	}
	var missing []string
	if contextutils.IsBlank(p.PageURL) {
		missing = append(missing, "pageUrl")
	}
	if contextutils.IsBlank(p.WhatTryingToDo) {
		missing = append(missing, "whatTryingToDo")
	}
	if contextutils.IsBlank(p.WhatActuallyHappened) {
		missing = append(missing, "whatActuallyHappened")
	}
	if len(missing) > 0 {
		return contextutils.NewAppError(
			contextutils.ErrorCodeMissingRequired,
			contextutils.SeverityWarn,
			"Missing required fields: "+strings.Join(missing, ", "),
			"",
		)
	}
	if email := strings.TrimSpace(p.UserEmail); email != "" && !contextutils.IsValidEmail(email) {
		return contextutils.NewAppError(
			contextutils.ErrorCodeInvalidFormat,
			contextutils.SeverityWarn,
			"Invalid email address",
			"",
		)
	}
	return nil
}

// DecodeAttachment converts a wire attachment ({name, type, data}) into bytes.
// data may be plain base64 or a data URL.
func DecodeAttachment(raw interface{}) (models.Attachment, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return models.Attachment{}, contextutils.NewAppError(contextutils.ErrorCodeInvalidFormat, contextutils.SeverityWarn, "Attachment must be an object", "")
	}
	name, _ := m["name"].(string)
	mediaType, _ := m["type"].(string)
	encoded, _ := m["data"].(string)

	if strings.HasPrefix(encoded, "data:") {
		if comma := strings.IndexByte(encoded, ','); comma > 0 {
			header := encoded[len("data:"):comma]
			if mediaType == "" {
				mediaType = strings.TrimSuffix(header, ";base64")
			}
			encoded = encoded[comma+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return models.Attachment{}, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidFormat,
			contextutils.SeverityWarn,
			fmt.Sprintf("Attachment %q is not valid base64", name),
			"",
			err,
		)
	}

	a := models.Attachment{Name: name, MediaType: mediaType, Data: data}
	a.MediaType = attachments.MediaType(a)
	a.Size = a.Len()
	return a, nil
}

// BuildSummary returns "[category] what happened" on one line, cut to limit runes
func BuildSummary(p models.SupportTicketPayload, limit int) string {
	happened := strings.Join(strings.Fields(p.WhatActuallyHappened), " ")
	summary := fmt.Sprintf("[%s] %s", p.IssueType, happened)
	if limit <= 0 || utf8.RuneCountInString(summary) <= limit {
		return summary
	}
	runes := []rune(summary)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

// BuildDescription lays out everything the reporter provided for the tracker
func BuildDescription(p models.SupportTicketPayload, files []models.Attachment) *tracker.Document {
	doc := tracker.NewDocument().
		Heading(2, "Report").
		Field("Category", string(p.IssueType)).
		Field("Page", p.PageURL).
		Field("Reporter", p.UserEmail)

	if !p.SubmittedAt.IsZero() {
		doc.Field("Submitted at", p.SubmittedAt.UTC().Format(time.RFC3339))
	}

	doc.Heading(3, "What were you trying to do?").Paragraph(p.WhatTryingToDo)
	doc.Heading(3, "What actually happened?").Paragraph(p.WhatActuallyHappened)
	if p.ErrorMessage != "" {
		doc.Heading(3, "Error message").CodeBlock("text", p.ErrorMessage)
	}

	if p.Environment != nil {
		doc.Heading(3, "Environment").BulletList(p.Environment.Lines())
	}

	errorsText := p.CapturedErrorsText
	if errorsText == "" && len(p.CapturedErrors) > 0 {
		errorsText = diagnostics.FormatErrors(p.CapturedErrors)
	}
	if errorsText != "" {
		doc.Heading(3, fmt.Sprintf("Captured errors (%d)", len(p.CapturedErrors))).CodeBlock("text", errorsText)
	}

	if len(files) > 0 {
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, fmt.Sprintf("%s (%s, %s)", f.Name, f.MediaType, attachments.FormatBytes(f.Len())))
		}
		doc.Heading(3, "Attachments").BulletList(names)
	}

	if p.Transcript != "" {
		doc.Heading(3, "Transcript").CodeBlock("text", p.Transcript)
	}
	return doc
}

