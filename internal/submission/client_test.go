package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"supportapp/internal/attachments"
	"supportapp/internal/config"
	"supportapp/internal/diagnostics"
	"supportapp/internal/models"
	"supportapp/internal/observability"
	contextutils "supportapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func testPayload() models.SupportTicketPayload {
	return models.SupportTicketPayload{
		IssueType:            models.CategoryBug,
		PageURL:              "https://x/y",
		WhatTryingToDo:       "log in",
		WhatActuallyHappened: "blank page",
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewClientWithURL(cfg, logger, server.URL, opts...), &calls
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSubmit_WithoutConsentMakesNoRequest(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.SubmissionResponse{Success: true, IssueKey: "SUP-1"})
	})

	res := client.Submit(context.Background(), testPayload(), nil, false)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestSubmit_OversizeAttachmentMakesNoRequest(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.SubmissionResponse{Success: true, IssueKey: "SUP-1"})
	})

	// Limits on the set are looser than the client's, so the client must catch it.
	loose := attachments.DefaultLimits()
	loose.MaxScreenshotBytes = 100 * config.MB
	set := attachments.NewSet(loose)
	require.NoError(t, set.AddScreenshot(models.Attachment{
		Name:      "huge.png",
		MediaType: "image/png",
		Data:      bytes.Repeat([]byte{1}, 6*config.MB),
	}))

	res := client.Submit(context.Background(), testPayload(), set, true)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "huge.png")
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestSubmit_SendsEncodedAttachmentsAndDiagnostics(t *testing.T) {
	var got models.TicketSubmission
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, models.SubmissionResponse{Success: true, IssueKey: "SUP-42"})
	},
		WithEnvironment(diagnostics.StaticEnvironment{
			UA:       "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0.0.0 Safari/537.36",
			Viewport: [2]int{1280, 800},
			Clock:    func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		}),
		WithErrorCapture(func() *diagnostics.ErrorCapture {
			capture := diagnostics.NewErrorCapture()
			capture.Record(models.CapturedErrorEvent{Kind: models.ErrorKindRuntime, Message: "x is undefined"})
			return capture
		}()),
	)

	set := attachments.NewSet(attachments.DefaultLimits())
	png := []byte("\x89PNG\r\n\x1a\nfake")
	require.NoError(t, set.AddScreenshot(models.Attachment{Name: "shot.png", Data: png}))

	res := client.Submit(context.Background(), testPayload(), set, true)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "SUP-42", res.TicketID)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	require.Len(t, got.Screenshots, 1)
	assert.Equal(t, "shot.png", got.Screenshots[0].Name)
	assert.Equal(t, "image/png", got.Screenshots[0].MediaType)
	assert.Equal(t, png, got.Screenshots[0].Data)
	assert.Nil(t, got.ScreenRecording)
	assert.Nil(t, got.HarFile)

	assert.True(t, got.Payload.ConsentGiven)
	assert.False(t, got.Payload.SubmittedAt.IsZero())
	require.NotNil(t, got.Payload.Environment)
	assert.Equal(t, "Chrome", got.Payload.Environment.Browser)
	require.Len(t, got.Payload.CapturedErrors, 1)
	assert.Contains(t, got.Payload.CapturedErrorsText, "x is undefined")
}

func TestSubmit_ScreenshotsEncodeAsEmptyList(t *testing.T) {
	var raw map[string]json.RawMessage
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeJSON(w, http.StatusOK, models.SubmissionResponse{Success: true, IssueKey: "SUP-7"})
	})

	res := client.Submit(context.Background(), testPayload(), nil, true)

	require.True(t, res.Success)
	assert.Equal(t, "[]", string(raw["screenshots"]))
	assert.Equal(t, "null", string(raw["harFile"]))
}

func TestSubmit_ErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"error field", http.StatusBadGateway, `{"success":false,"error":"Project SUP does not exist"}`, "Project SUP does not exist"},
		{"message field", http.StatusBadRequest, `{"message":"pageUrl is required"}`, "pageUrl is required"},
		{"no body", http.StatusInternalServerError, ``, "request failed with status 500"},
		{"html body", http.StatusServiceUnavailable, `<html>down</html>`, "request failed with status 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res := client.Submit(context.Background(), testPayload(), nil, true)

			assert.False(t, res.Success)
			assert.Equal(t, tt.wantErr, res.Error)
		})
	}
}

func TestSubmit_SuccessFalseInBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.SubmissionResponse{Success: false, Error: "tracker disabled"})
	})

	res := client.Submit(context.Background(), testPayload(), nil, true)

	assert.False(t, res.Success)
	assert.Equal(t, "tracker disabled", res.Error)
}

func TestSubmit_UnreachableServer(t *testing.T) {
	cfg := &config.Config{}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	res := NewClientWithURL(cfg, logger, url).Submit(context.Background(), testPayload(), nil, true)

	assert.False(t, res.Success)
	assert.Equal(t, "Could not reach the support service", res.Error)
}

func TestSubmit_SpanCarriesErrorCode(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	observability.InitGlobalTracer()
	defer func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		observability.InitGlobalTracer()
	}()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.SubmissionResponse{Success: true, IssueKey: "SUP-1"})
	})

	client.Submit(context.Background(), testPayload(), nil, false)
	res := client.Submit(context.Background(), testPayload(), nil, true)
	require.True(t, res.Success)

	spans := recorder.Ended()
	var submits []sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == "submission.submit" {
			submits = append(submits, s)
		}
	}
	require.Len(t, submits, 2)

	assert.Equal(t, codes.Error, submits[0].Status().Code)
	var code string
	for _, attr := range submits[0].Attributes() {
		if attr.Key == "error.code" {
			code = attr.Value.AsString()
		}
	}
	assert.Equal(t, string(contextutils.ErrorCodeConsentRequired), code)
	assert.Equal(t, codes.Unset, submits[1].Status().Code)
}
