package flow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"supportapp/internal/attachments"
	"supportapp/internal/config"
	"supportapp/internal/diagnostics"
	"supportapp/internal/models"
	"supportapp/internal/submission"
	contextutils "supportapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	calls    int
	payloads []models.SupportTicketPayload
	result   submission.Result
	block    chan struct{}
	entered  chan struct{}
}

func (f *fakeSubmitter) Submit(ctx context.Context, p models.SupportTicketPayload, set *attachments.Set, consent bool) submission.Result {
	f.mu.Lock()
	f.calls++
	f.payloads = append(f.payloads, p)
	res := f.result
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return res
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var validContext = ContextInput{
	PageURL:              "https://x/y",
	WhatTryingToDo:       "log in",
	WhatActuallyHappened: "blank page",
}

func newTestController(sub Submitter) *Controller {
	return NewController(Options{
		Submitter: sub,
		Environment: diagnostics.StaticEnvironment{
			UA:       "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Version/17.0 Mobile/15E148 Safari/604.1",
			Viewport: [2]int{390, 844},
		},
		Clock: func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) },
	})
}

func advanceToConsent(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.SelectCategory(models.CategoryBug))
	require.NoError(t, c.SetContext(validContext))
	require.NoError(t, c.ContinueFromAttachments())
	require.Equal(t, StateConsent, c.State())
}

func TestController_CategoryIsSticky(t *testing.T) {
	for _, first := range models.IssueCategories {
		t.Run(string(first), func(t *testing.T) {
			c := newTestController(&fakeSubmitter{})
			require.NoError(t, c.SelectCategory(first))

			for _, other := range models.IssueCategories {
				require.NoError(t, c.SelectCategory(other))
			}
			assert.Equal(t, first, c.Category())
			assert.Equal(t, StateContext, c.State())
		})
	}
}

func TestController_UnknownCategoryRejected(t *testing.T) {
	c := newTestController(&fakeSubmitter{})

	err := c.SelectCategory("Feature request")

	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))
	assert.Equal(t, StateIssue, c.State())
	require.NoError(t, c.SelectCategory(models.CategoryOther))
}

func TestController_ContextRequiresTrimmedFields(t *testing.T) {
	blanks := []string{"", "   ", "\t\n"}
	for _, field := range []string{"pageUrl", "whatTryingToDo", "whatActuallyHappened"} {
		for _, blank := range blanks {
			in := validContext
			switch field {
			case "pageUrl":
				in.PageURL = blank
			case "whatTryingToDo":
				in.WhatTryingToDo = blank
			case "whatActuallyHappened":
				in.WhatActuallyHappened = blank
			}

			c := newTestController(&fakeSubmitter{})
			require.NoError(t, c.SelectCategory(models.CategoryBug))
			err := c.SetContext(in)

			assert.True(t, errors.Is(err, contextutils.ErrMissingRequired), "%s=%q", field, blank)
			assert.Contains(t, err.Error(), field)
			assert.Equal(t, StateContext, c.State())
		}
	}
}

func TestController_ContextAllowsEmptyErrorMessage(t *testing.T) {
	c := newTestController(&fakeSubmitter{})
	require.NoError(t, c.SelectCategory(models.CategoryBug))

	in := validContext
	in.ErrorMessage = "   "
	require.NoError(t, c.SetContext(in))

	assert.Equal(t, StateAttachments, c.State())
	assert.Equal(t, "", c.Payload().ErrorMessage)
}

func TestController_ContextValidatesEmail(t *testing.T) {
	c := newTestController(&fakeSubmitter{})
	require.NoError(t, c.SelectCategory(models.CategoryAccount))

	in := validContext
	in.UserEmail = "not-an-email"
	assert.True(t, errors.Is(c.SetContext(in), contextutils.ErrInvalidFormat))

	in.UserEmail = " jane@example.com "
	require.NoError(t, c.SetContext(in))
	assert.Equal(t, "jane@example.com", c.Payload().UserEmail)
}

func TestController_AttachmentErrorsDoNotBlockAdvance(t *testing.T) {
	c := newTestController(&fakeSubmitter{})
	require.NoError(t, c.SelectCategory(models.CategoryBug))
	require.NoError(t, c.SetContext(validContext))

	err := c.AddScreenshot(models.Attachment{Name: "big.png", MediaType: "image/png", Data: bytes.Repeat([]byte{1}, 6*config.MB)})
	assert.True(t, errors.Is(err, contextutils.ErrAttachmentTooLarge))
	err = c.SetRecording(models.Attachment{Name: "clip.png", MediaType: "image/png", Data: []byte{1}})
	assert.True(t, errors.Is(err, contextutils.ErrAttachmentInvalidType))

	assert.Len(t, c.InlineErrors(), 2)
	assert.Equal(t, 0, c.Attachments().Count())

	require.NoError(t, c.ContinueFromAttachments())
	assert.Equal(t, StateConsent, c.State())
}

func TestController_AttachmentsOnlyInAttachmentsStep(t *testing.T) {
	c := newTestController(&fakeSubmitter{})

	err := c.AddScreenshot(models.Attachment{Name: "a.png", MediaType: "image/png", Data: []byte{1}})

	assert.True(t, errors.Is(err, contextutils.ErrInvalidTransition))
}

func TestController_SubmitWithoutConsentMakesNoCall(t *testing.T) {
	sub := &fakeSubmitter{result: submission.Result{Success: true, TicketID: "SUP-1"}}
	c := newTestController(sub)
	advanceToConsent(t, c)

	res, err := c.Submit(context.Background())
	assert.True(t, errors.Is(err, contextutils.ErrConsentRequired))
	assert.False(t, res.Success)

	require.NoError(t, c.SetConsent(false))
	_, err = c.Submit(context.Background())
	assert.Error(t, err)

	assert.Equal(t, 0, sub.callCount())
	assert.Equal(t, StateConsent, c.State())
}

func TestController_SubmitSuccess(t *testing.T) {
	sub := &fakeSubmitter{result: submission.Result{Success: true, TicketID: "SUP-12"}}
	c := newTestController(sub)
	advanceToConsent(t, c)
	require.NoError(t, c.SetConsent(true))

	res, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SUP-12", res.TicketID)
	assert.Equal(t, StateSubmitted, c.State())
	assert.Equal(t, "SUP-12", c.TicketID())

	require.Len(t, sub.payloads, 1)
	sent := sub.payloads[0]
	assert.Equal(t, models.CategoryBug, sent.IssueType)
	assert.Equal(t, "blank page", sent.WhatActuallyHappened)
	assert.Contains(t, sent.Transcript, "User: "+string(models.CategoryBug))
	assert.Contains(t, sent.Transcript, "Assistant: "+PromptConsent)
	require.NotNil(t, sent.Environment)
	assert.Equal(t, models.DeviceMobile, sent.Environment.Device)
	assert.Equal(t, time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC), sent.SubmittedAt)

	// Terminal until reset
	assert.Error(t, c.SetConsent(true))
	assert.Error(t, c.ContinueFromAttachments())
	_, err = c.Submit(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, sub.callCount())
}

func TestController_FailureReturnsToConsentKeepingData(t *testing.T) {
	sub := &fakeSubmitter{result: submission.Result{Error: "Project SUP does not exist"}}
	c := newTestController(sub)
	advanceToConsent(t, c)
	require.NoError(t, c.SetConsent(true))

	_, err := c.Submit(context.Background())

	require.Error(t, err)
	assert.Equal(t, StateConsent, c.State())
	assert.Equal(t, "Project SUP does not exist", c.LastError())
	p := c.Payload()
	assert.Equal(t, "https://x/y", p.PageURL)
	assert.Equal(t, models.CategoryBug, p.IssueType)
	assert.True(t, p.ConsentGiven)

	sub.mu.Lock()
	sub.result = submission.Result{Success: true, TicketID: "SUP-13"}
	sub.mu.Unlock()
	res, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SUP-13", res.TicketID)
	assert.Equal(t, "", c.LastError())
}

func TestController_SingleSubmissionInFlight(t *testing.T) {
	sub := &fakeSubmitter{
		result:  submission.Result{Success: true, TicketID: "SUP-2"},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := newTestController(sub)
	advanceToConsent(t, c)
	require.NoError(t, c.SetConsent(true))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-sub.entered

	assert.Equal(t, StateSubmitting, c.State())
	_, err := c.Submit(context.Background())
	assert.True(t, errors.Is(err, contextutils.ErrSubmissionInFlight))
	assert.True(t, errors.Is(c.Reset(), contextutils.ErrSubmissionInFlight))
	assert.Error(t, c.SetConsent(false))

	close(sub.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, sub.callCount())
	assert.Equal(t, StateSubmitted, c.State())
}

func TestController_ResetClearsEverything(t *testing.T) {
	sub := &fakeSubmitter{result: submission.Result{Success: true, TicketID: "SUP-3"}}
	c := newTestController(sub)
	require.NoError(t, c.SelectCategory(models.CategoryPayment))
	require.NoError(t, c.SetContext(validContext))
	require.NoError(t, c.AddScreenshot(models.Attachment{Name: "a.png", MediaType: "image/png", Data: []byte{1}}))

	require.NoError(t, c.Reset())

	assert.Equal(t, StateIssue, c.State())
	assert.Equal(t, models.IssueCategory(""), c.Category())
	assert.Equal(t, 0, c.Attachments().Count())
	assert.Equal(t, "Assistant: "+PromptIssue, c.Transcript())
	require.NoError(t, c.SelectCategory(models.CategoryOther))
	assert.Equal(t, models.CategoryOther, c.Category())
}

func TestController_ResetReleasesRecorder(t *testing.T) {
	stream := &endlessStream{stopped: make(chan struct{})}
	rec := attachments.NewRecorder(stubCapturer{stream}, config.DefaultMaxRecordingBytes)
	c := NewController(Options{Submitter: &fakeSubmitter{}, Recorder: rec})
	require.NoError(t, c.SelectCategory(models.CategoryBug))
	require.NoError(t, c.SetContext(validContext))
	require.NoError(t, c.StartRecording(context.Background()))

	require.NoError(t, c.Reset())

	select {
	case <-stream.stopped:
	default:
		t.Fatal("recording tracks were not stopped on reset")
	}
	assert.Equal(t, attachments.RecorderStopped, rec.State())
}

func TestController_PromptFollowsState(t *testing.T) {
	c := newTestController(&fakeSubmitter{})
	assert.Equal(t, PromptIssue, c.Prompt())
	require.NoError(t, c.SelectCategory(models.CategoryContent))
	assert.Equal(t, PromptContext, c.Prompt())
	assert.True(t, strings.HasPrefix(c.Transcript(), "Assistant: "+PromptIssue))
}

type endlessStream struct {
	once    sync.Once
	stopped chan struct{}
}

func (s *endlessStream) Read(p []byte) (int, error) {
	<-s.stopped
	return 0, io.EOF
}

func (s *endlessStream) Tracks() []attachments.Track { return []attachments.Track{s} }
func (s *endlessStream) MimeType() string            { return "video/webm" }
func (s *endlessStream) Stop()                       { s.once.Do(func() { close(s.stopped) }) }

type stubCapturer struct{ stream attachments.MediaStream }

func (c stubCapturer) RequestCapture(context.Context) (attachments.MediaStream, error) {
	return c.stream, nil
}
