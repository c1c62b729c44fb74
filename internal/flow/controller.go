package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"supportapp/internal/attachments"
	"supportapp/internal/diagnostics"
	"supportapp/internal/models"
	"supportapp/internal/submission"
	contextutils "supportapp/internal/utils"
)

// Prompts shown for each step. They are also written to the transcript.
const (
	PromptIssue       = "What kind of issue are you running into?"
	PromptContext     = "Tell us where it happened, what you were trying to do and what happened instead."
	PromptAttachments = "Add screenshots, a screen recording or a network log if you have them."
	PromptConsent     = "We will send your answers and the diagnostic details above to our support team. Do you agree?"
	PromptSubmitted   = "Thanks, your ticket has been created."
)

// Submitter sends a finished ticket
type Submitter interface {
	Submit(ctx context.Context, payload models.SupportTicketPayload, set *attachments.Set, consentGiven bool) submission.Result
}

// ContextInput is the free text gathered in the context step
type ContextInput struct {
	PageURL              string
	WhatTryingToDo       string
	WhatActuallyHappened string
	ErrorMessage         string
	UserEmail            string
}

// Options configures a Controller
type Options struct {
	Submitter Submitter
	// Environment is captured into the diagnostic snapshot on every reset. Optional.
	Environment diagnostics.Environment
	// Recorder is released on reset. Optional.
	Recorder *attachments.Recorder
	Limits   attachments.Limits
	Clock    func() time.Time
}

// Controller owns the ticket being collected and enforces the step order.
// Methods are safe to call from multiple goroutines.
type Controller struct {
	mu   sync.Mutex
	opts Options

	state          State
	payload        models.SupportTicketPayload
	categoryLocked bool
	consent        bool
	set            *attachments.Set
	transcript     []string
	inlineErrors   []string
	lastError      string
	ticketID       string
}

// NewController creates a controller positioned on the issue step
func NewController(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Limits.MaxScreenshots == 0 {
		opts.Limits = attachments.DefaultLimits()
	}
	c := &Controller{opts: opts}
	c.resetLocked()
	return c
}

// Reset clears everything entered, releases an active recording and captures a new snapshot.
// It is the only way to leave the submitted step and is refused while a submission is in flight.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := Transition(c.state, EventReset); err != nil {
		return err
	}
	c.resetLocked()
	return nil
}

func (c *Controller) resetLocked() {
	if c.opts.Recorder != nil {
		c.opts.Recorder.Cancel()
	}
	c.state = StateIssue
	c.payload = models.SupportTicketPayload{}
	c.categoryLocked = false
	c.consent = false
	c.set = attachments.NewSet(c.opts.Limits)
	c.transcript = nil
	c.inlineErrors = nil
	c.lastError = ""
	c.ticketID = ""
	if c.opts.Environment != nil {
		snapshot := diagnostics.Capture(c.opts.Environment)
		c.payload.Environment = &snapshot
	}
	c.say(PromptIssue)
}

// State returns the current step
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Prompt returns the question for the current step
func (c *Controller) Prompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return promptFor(c.state)
}

func promptFor(s State) string {
	switch s {
	case StateIssue:
		return PromptIssue
	case StateContext:
		return PromptContext
	case StateAttachments:
		return PromptAttachments
	case StateConsent, StateSubmitting:
		return PromptConsent
	default:
		return PromptSubmitted
	}
}

// SelectCategory records the issue category and moves to the context step.
// Only the first valid selection counts; later selections are ignored.
func (c *Controller) SelectCategory(category models.IssueCategory) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.categoryLocked {
		return nil
	}
	if !category.Valid() {
		return contextutils.NewAppError(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			fmt.Sprintf("Unknown issue category %q", category),
			"",
		)
	}
	next, err := Transition(c.state, EventSelectCategory)
	if err != nil {
		return err
	}
	c.payload.IssueType = category
	c.categoryLocked = true
	c.answer(string(category))
	c.moveLocked(next)
	return nil
}

// Category returns the selected category, empty before selection
func (c *Controller) Category() models.IssueCategory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload.IssueType
}

// SetContext validates the free text and moves to the attachments step.
// Page URL, what the reporter was trying to do and what happened are required after trimming.
func (c *Controller) SetContext(in ContextInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateContext {
		_, err := Transition(c.state, EventSubmitContext)
		return err
	}

	in = ContextInput{
		PageURL:              strings.TrimSpace(in.PageURL),
		WhatTryingToDo:       strings.TrimSpace(in.WhatTryingToDo),
		WhatActuallyHappened: strings.TrimSpace(in.WhatActuallyHappened),
		ErrorMessage:         strings.TrimSpace(in.ErrorMessage),
		UserEmail:            strings.TrimSpace(in.UserEmail),
	}
	if missing := MissingContextFields(in); len(missing) > 0 {
		return contextutils.NewAppError(
			contextutils.ErrorCodeMissingRequired,
			contextutils.SeverityWarn,
			"Please fill in "+strings.Join(missing, ", "),
			strings.Join(missing, ","),
		)
	}
	if in.UserEmail != "" && !contextutils.IsValidEmail(in.UserEmail) {
		return contextutils.NewAppError(
			contextutils.ErrorCodeInvalidFormat,
			contextutils.SeverityWarn,
			"Please enter a valid email address",
			"userEmail",
		)
	}

	next, err := Transition(c.state, EventSubmitContext)
	if err != nil {
		return err
	}
	c.payload.PageURL = in.PageURL
	c.payload.WhatTryingToDo = in.WhatTryingToDo
	c.payload.WhatActuallyHappened = in.WhatActuallyHappened
	c.payload.ErrorMessage = in.ErrorMessage
	c.payload.UserEmail = in.UserEmail

	c.answer("Page: " + in.PageURL)
	c.answer("Trying to do: " + in.WhatTryingToDo)
	c.answer("What happened: " + in.WhatActuallyHappened)
	if in.ErrorMessage != "" {
		c.answer("Error message: " + in.ErrorMessage)
	}
	c.moveLocked(next)
	return nil
}

// MissingContextFields names the required context fields that are blank
func MissingContextFields(in ContextInput) []string {
	var missing []string
	if contextutils.IsBlank(in.PageURL) {
		missing = append(missing, "pageUrl")
	}
	if contextutils.IsBlank(in.WhatTryingToDo) {
		missing = append(missing, "whatTryingToDo")
	}
	if contextutils.IsBlank(in.WhatActuallyHappened) {
		missing = append(missing, "whatActuallyHappened")
	}
	return missing
}

// AddScreenshot attaches a screenshot. A rejected file is reported inline and the step stays open.
func (c *Controller) AddScreenshot(a models.Attachment) error {
	return c.acquire(func(set *attachments.Set) error { return set.AddScreenshot(a) })
}

// SetRecording attaches a screen recording
func (c *Controller) SetRecording(a models.Attachment) error {
	return c.acquire(func(set *attachments.Set) error { return set.SetRecording(a) })
}

// SetNetworkLog attaches a network log export
func (c *Controller) SetNetworkLog(a models.Attachment) error {
	return c.acquire(func(set *attachments.Set) error { return set.SetNetworkLog(a) })
}

// RemoveScreenshot drops the screenshot at index i
func (c *Controller) RemoveScreenshot(i int) error {
	return c.acquire(func(set *attachments.Set) error {
		set.RemoveScreenshot(i)
		return nil
	})
}

func (c *Controller) acquire(fn func(*attachments.Set) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAttachments {
		return contextutils.NewAppError(
			contextutils.ErrorCodeInvalidTransition,
			contextutils.SeverityWarn,
			fmt.Sprintf("attachments cannot be changed in %s step", c.state),
			"",
		)
	}
	if err := fn(c.set); err != nil {
		c.inlineErrors = append(c.inlineErrors, contextutils.UserMessage(err))
		return err
	}
	return nil
}

// StartRecording starts the configured recorder. It blocks while permission is requested.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	rec := c.opts.Recorder
	state := c.state
	c.mu.Unlock()

	if rec == nil {
		return contextutils.NewAppError(contextutils.ErrorCodeServiceUnavailable, contextutils.SeverityWarn, "Screen recording is not available", "")
	}
	if state != StateAttachments {
		return contextutils.NewAppError(contextutils.ErrorCodeInvalidTransition, contextutils.SeverityWarn, "Recording can only start in the attachments step", "")
	}
	if err := rec.Start(ctx); err != nil {
		c.mu.Lock()
		c.inlineErrors = append(c.inlineErrors, contextutils.UserMessage(err))
		c.mu.Unlock()
		return err
	}
	return nil
}

// StopRecording stops the recorder and attaches the clip
func (c *Controller) StopRecording() error {
	rec := c.opts.Recorder
	if rec == nil {
		return contextutils.NewAppError(contextutils.ErrorCodeServiceUnavailable, contextutils.SeverityWarn, "Screen recording is not available", "")
	}
	clip, err := rec.Stop()
	if err != nil {
		c.mu.Lock()
		c.inlineErrors = append(c.inlineErrors, contextutils.UserMessage(err))
		c.mu.Unlock()
		return err
	}
	return c.SetRecording(*clip)
}

// InlineErrors returns the acquisition errors reported so far
func (c *Controller) InlineErrors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.inlineErrors...)
}

// Attachments returns the attachment set of the current ticket
func (c *Controller) Attachments() *attachments.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set
}

// ContinueFromAttachments moves to the consent step. Attachments are optional.
func (c *Controller) ContinueFromAttachments() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := Transition(c.state, EventContinueAttachments)
	if err != nil {
		return err
	}
	c.answer(fmt.Sprintf("Attachments: %d", c.set.Count()))
	c.moveLocked(next)
	return nil
}

// SetConsent records the reporter's answer to the consent question
func (c *Controller) SetConsent(given bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := Transition(c.state, EventGiveConsent); err != nil {
		return err
	}
	c.consent = given
	if given {
		c.answer("Yes")
	} else {
		c.answer("No")
	}
	return nil
}

// Submit sends the ticket. Only one submission can be in flight; a failure returns to
// the consent step with every answer kept.
func (c *Controller) Submit(ctx context.Context) (submission.Result, error) {
	c.mu.Lock()
	if c.state == StateConsent && !c.consent {
		c.mu.Unlock()
		return submission.Result{Error: contextutils.ErrConsentRequired.Message}, contextutils.ErrConsentRequired
	}
	next, err := Transition(c.state, EventSubmitStarted)
	if err != nil {
		c.mu.Unlock()
		return submission.Result{}, err
	}
	c.state = next
	c.lastError = ""
	payload := c.payload
	payload.Transcript = strings.Join(c.transcript, "\n")
	payload.SubmittedAt = c.opts.Clock().UTC()
	set := c.set
	c.mu.Unlock()

	var res submission.Result
	if c.opts.Submitter == nil {
		res = submission.Result{Error: "No submitter configured"}
	} else {
		res = c.opts.Submitter.Submit(ctx, payload, set, true)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if res.Success {
		c.state, _ = Transition(c.state, EventSubmitSucceeded)
		c.ticketID = res.TicketID
		c.say(PromptSubmitted + " Reference: " + res.TicketID)
		return res, nil
	}
	c.state, _ = Transition(c.state, EventSubmitFailed)
	c.lastError = res.Error
	return res, contextutils.NewAppError(contextutils.ErrorCodeSubmissionFailed, contextutils.SeverityError, res.Error, "")
}

// LastError returns the message of the last failed submission
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// TicketID returns the ticket created by a successful submission
func (c *Controller) TicketID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticketID
}

// Payload returns a copy of the ticket collected so far, including the transcript
func (c *Controller) Payload() models.SupportTicketPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.payload
	p.ConsentGiven = c.consent
	p.Transcript = strings.Join(c.transcript, "\n")
	return p
}

// Transcript returns the conversation so far
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.transcript, "\n")
}

func (c *Controller) moveLocked(next State) {
	c.state = next
	if next != StateSubmitted {
		c.say(promptFor(next))
	}
}

func (c *Controller) say(line string) {
	c.transcript = append(c.transcript, "Assistant: "+line)
}

func (c *Controller) answer(line string) {
	c.transcript = append(c.transcript, "User: "+line)
}
