package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"supportapp/internal/config"
	"supportapp/internal/middleware"
	"supportapp/internal/models"
	"supportapp/internal/observability"
	"supportapp/internal/services"
	"supportapp/internal/tracker"
	contextutils "supportapp/internal/utils"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSupportService struct {
	mu       sync.Mutex
	requests []models.NormalizedRequest
	ticket   *models.CreatedTicket
	err      error
}

func (f *fakeSupportService) SubmitTicket(_ context.Context, req models.NormalizedRequest) (*models.CreatedTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.ticket, f.err
}

func testRouterConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			MaxBodyBytes: config.DefaultMaxBodyBytes,
		},
		OpenTelemetry: config.OpenTelemetryConfig{ServiceName: "support-backend"},
	}
}

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const ticketBody = `{"payload":{"issueType":"Bug / Error on page","pageUrl":"https://x/y","whatTryingToDo":"log in","whatActuallyHappened":"blank page","consentGiven":true},"screenshots":[],"screenRecording":null,"harFile":null}`

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) models.SubmissionResponse {
	t.Helper()
	var resp models.SubmissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSubmitTicket_EnvelopeShapes(t *testing.T) {
	inner := ticketBody
	quoted, _ := json.Marshal(inner)
	wrapped, _ := json.Marshal(map[string]interface{}{"body": json.RawMessage(inner)})

	tests := []struct {
		name string
		body string
	}{
		{"plain object", inner},
		{"bodyRaw base64", `{"bodyRaw":"` + base64.StdEncoding.EncodeToString([]byte(inner)) + `"}`},
		{"bodyJson string", `{"bodyJson":` + string(quoted) + `}`},
		{"body object with nested body", `{"body":` + string(wrapped) + `}`},
		{"req.bodyJson", `{"req":{"bodyJson":` + inner + `}}`},
		{"json string body", string(quoted)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeSupportService{ticket: &models.CreatedTicket{Key: "SUP-1"}}
			router := NewRouter(testRouterConfig(), svc, testLogger())

			w := post(router, TicketsPath, tt.body)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, models.SubmissionResponse{Success: true, IssueKey: "SUP-1"}, decodeResponse(t, w))
			require.Len(t, svc.requests, 1)
			got := svc.requests[0]
			assert.Equal(t, http.MethodPost, got.Method)
			assert.Equal(t, "blank page", got.Payload["whatActuallyHappened"])
			if diff := cmp.Diff([]interface{}{}, got.Screenshots); diff != "" {
				t.Errorf("screenshots mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSubmitTicket_NonJSONBodyIsEmptyPayload(t *testing.T) {
	svc := &fakeSupportService{err: contextutils.ErrValidationFailed}
	router := NewRouter(testRouterConfig(), svc, testLogger())

	w := post(router, TicketsPath, "definitely not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, svc.requests, 1)
	assert.Empty(t, svc.requests[0].Payload)
	assert.False(t, decodeResponse(t, w).Success)
}

func TestSubmitTicket_LegacyPath(t *testing.T) {
	svc := &fakeSupportService{ticket: &models.CreatedTicket{Key: "SUP-2"}}
	router := NewRouter(testRouterConfig(), svc, testLogger())

	w := post(router, LegacyTicketsPath, ticketBody)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUP-2", decodeResponse(t, w).IssueKey)
	assert.NotEmpty(t, w.Header().Get(middleware.SubmissionIDHeader))
}

func TestSubmitTicket_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"consent", contextutils.ErrConsentRequired, http.StatusBadRequest, contextutils.ErrConsentRequired.Message},
		{"tracker", contextutils.NewAppError(contextutils.ErrorCodeTrackerRequestFailed, contextutils.SeverityError, "Project SUP does not exist", ""), http.StatusBadGateway, "Project SUP does not exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(testRouterConfig(), &fakeSupportService{err: tt.err}, testLogger())

			w := post(router, TicketsPath, ticketBody)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Error)
		})
	}
}

func TestSubmitTicket_BodyTooLarge(t *testing.T) {
	cfg := testRouterConfig()
	cfg.Server.MaxBodyBytes = 64
	svc := &fakeSupportService{}
	router := NewRouter(cfg, svc, testLogger())

	w := post(router, TicketsPath, ticketBody)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, svc.requests)
}

func TestRouter_HealthAndVersion(t *testing.T) {
	router := NewRouter(testRouterConfig(), &fakeSupportService{}, testLogger())

	for _, path := range []string{"/health", "/v1/version", "/"} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	req, _ := http.NewRequest(http.MethodGet, "/v1/unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router := NewRouter(testRouterConfig(), &fakeSupportService{}, testLogger())

	req, _ := http.NewRequest(http.MethodGet, "/v1/version", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, config.DefaultCSP, w.Header().Get("Content-Security-Policy"))
}

func TestRequestEnvelope(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"payload": map[string]interface{}{}}, RequestEnvelope([]byte(`{"payload":{}}`)))
	assert.Equal(t, map[string]interface{}{"bodyRaw": "abc"}, RequestEnvelope([]byte(`"abc"`)))
	assert.Equal(t, map[string]interface{}{"bodyRaw": "a=b"}, RequestEnvelope([]byte("a=b\n")))
	assert.Equal(t, map[string]interface{}{}, RequestEnvelope(nil))
	assert.Equal(t, map[string]interface{}{"bodyRaw": "[1,2]"}, RequestEnvelope([]byte("[1,2]")))
}

// fakeJira answers issue creation and attachment uploads
type fakeJira struct {
	mu           sync.Mutex
	createStatus int
	createBody   string
	uploadStatus int
	uploads      int
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	if r.URL.Path == tracker.IssuePath {
		w.WriteHeader(f.createStatus)
		_, _ = io.WriteString(w, f.createBody)
		return
	}
	f.mu.Lock()
	f.uploads++
	f.mu.Unlock()
	w.WriteHeader(f.uploadStatus)
}

func endToEndRouter(t *testing.T, jira *fakeJira) http.Handler {
	t.Helper()
	server := httptest.NewServer(jira)
	t.Cleanup(server.Close)

	cfg := testRouterConfig()
	cfg.Tracker = config.TrackerConfig{
		Enabled:    true,
		BaseURL:    server.URL,
		Email:      "bot@example.com",
		APIToken:   "secret-token",
		ProjectKey: "SUP",
	}
	logger := testLogger()
	svc, err := services.NewSupportService(cfg, tracker.NewJiraClient(cfg, logger, nil), nil, nil, logger)
	require.NoError(t, err)
	return NewRouter(cfg, svc, logger)
}

func screenshotBody(t *testing.T) string {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(ticketBody), &payload))
	payload["screenshots"] = []interface{}{map[string]interface{}{
		"name": "screen.png",
		"type": "image/png",
		"data": base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 2*config.MB)),
	}}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}

func TestEndToEnd_UploadFailureStillReturnsIssueKey(t *testing.T) {
	jira := &fakeJira{createStatus: http.StatusCreated, createBody: `{"key":"SUP-77"}`, uploadStatus: http.StatusInternalServerError}
	router := endToEndRouter(t, jira)

	w := post(router, TicketsPath, screenshotBody(t))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SubmissionResponse{Success: true, IssueKey: "SUP-77"}, decodeResponse(t, w))
	assert.Equal(t, 1, jira.uploads)
}

func TestEndToEnd_CreateFailureReturnsTrackerMessage(t *testing.T) {
	jira := &fakeJira{createStatus: http.StatusUnauthorized, createBody: `{"errorMessages":["Client must be authenticated"]}`, uploadStatus: http.StatusOK}
	router := endToEndRouter(t, jira)

	w := post(router, TicketsPath, screenshotBody(t))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "Client must be authenticated", resp.Error)
	assert.NotContains(t, w.Body.String(), "secret-token")
	assert.Equal(t, 0, jira.uploads)
}
