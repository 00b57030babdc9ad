package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/lexiguard/internal/common"
	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/jobservice"
	"github.com/ternarybob/lexiguard/internal/models"
	"github.com/ternarybob/lexiguard/internal/services/chat"
	"github.com/ternarybob/lexiguard/internal/services/events"
	"github.com/ternarybob/lexiguard/internal/services/reports"
	"github.com/ternarybob/lexiguard/internal/tracking"
)

// fakeJobService scripts Submit and Status responses.
type fakeJobService struct {
	mu        sync.Mutex
	submitID  string
	submitErr error
	status    models.Job
	statusErr error
}

func (f *fakeJobService) Submit(ctx context.Context, documentRef string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitID, nil
}

func (f *fakeJobService) Status(ctx context.Context, sessionID string) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return models.Job{}, f.statusErr
	}
	job := f.status
	job.SessionID = sessionID
	return job, nil
}

// memorySessions is an in-memory SessionStorage.
type memorySessions struct {
	mu   sync.Mutex
	docs map[string]*models.SessionDocument
}

func newMemorySessions() *memorySessions {
	return &memorySessions{docs: make(map[string]*models.SessionDocument)}
}

func (m *memorySessions) SaveSession(ctx context.Context, session *models.SessionDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[session.SessionID] = session
	return nil
}

func (m *memorySessions) GetSession(ctx context.Context, sessionID string) (*models.SessionDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[sessionID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return doc, nil
}

func (m *memorySessions) ListSessions(ctx context.Context, limit int) ([]*models.SessionDocument, error) {
	return nil, nil
}

func (m *memorySessions) DeleteSession(ctx context.Context, sessionID string) error {
	return nil
}

func (m *memorySessions) DeleteSessionsOlderThan(ctx context.Context, days int) (int, error) {
	return 0, nil
}

func newTestRegistry(t *testing.T, jobs interfaces.JobService) *tracking.Registry {
	t.Helper()

	logger := common.GetLogger()
	registry := tracking.NewRegistry(jobs, events.NewService(logger), newMemorySessions(), logger, tracking.Config{
		PollInterval: 10 * time.Millisecond,
		TickInterval: 5 * time.Millisecond,
	})
	t.Cleanup(registry.Shutdown)
	return registry
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAnalyzeHandler(t *testing.T) {
	jobs := &fakeJobService{
		submitID: "sess_new",
		status:   models.Job{RawStatus: "running"},
	}
	h := NewAnalyzeHandler(jobs, newTestRegistry(t, jobs), common.GetLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"document_ref":"agreement.pdf"}`))
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "sess_new", body["session_id"])
	assert.Equal(t, "tracking", body["status"])
}

func TestAnalyzeHandlerValidation(t *testing.T) {
	jobs := &fakeJobService{submitID: "sess_new"}
	h := NewAnalyzeHandler(jobs, newTestRegistry(t, jobs), common.GetLogger())

	tests := []struct {
		name string
		body string
	}{
		{"empty document_ref", `{"document_ref":""}`},
		{"malformed json", `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Analyze(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAnalyzeHandlerSubmissionFailure(t *testing.T) {
	jobs := &fakeJobService{
		submitErr: &jobservice.APIError{StatusCode: 503, Message: "queue full", Endpoint: "/analyze-document"},
	}
	registry := newTestRegistry(t, jobs)
	h := NewAnalyzeHandler(jobs, registry, common.GetLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"document_ref":"agreement.pdf"}`))
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	// No tracking session may start for a failed submission.
	assert.Equal(t, 0, registry.ActiveCount())
}

func TestAnalyzeHandlerMethodNotAllowed(t *testing.T) {
	jobs := &fakeJobService{}
	h := NewAnalyzeHandler(jobs, newTestRegistry(t, jobs), common.GetLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/analyze", nil)
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestJobHandlerTrackedSession(t *testing.T) {
	jobs := &fakeJobService{status: models.Job{RawStatus: "running", Message: "analyzing"}}
	registry := newTestRegistry(t, jobs)
	require.NoError(t, registry.Track("sess_tracked"))

	// Let the first poll land.
	time.Sleep(50 * time.Millisecond)

	h := NewJobHandler(jobs, registry, common.GetLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/job-status/sess_tracked", nil)
	rec := httptest.NewRecorder()
	h.HandleJobStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "sess_tracked", body["session_id"])
	assert.Equal(t, true, body["tracked"])
	assert.Equal(t, "running", body["status"])
}

func TestJobHandlerUntrackedUnknownSession(t *testing.T) {
	jobs := &fakeJobService{
		statusErr: &jobservice.APIError{StatusCode: 404, Message: "unknown session", Endpoint: "/job-status/x"},
	}
	h := NewJobHandler(jobs, newTestRegistry(t, jobs), common.GetLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/job-status/sess_unknown", nil)
	rec := httptest.NewRecorder()
	h.HandleJobStatus(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobHandlerCancelFlow(t *testing.T) {
	jobs := &fakeJobService{status: models.Job{RawStatus: "running"}}
	registry := newTestRegistry(t, jobs)
	require.NoError(t, registry.Track("sess_cancel"))

	h := NewJobHandler(jobs, registry, common.GetLogger())

	// Unconfirmed cancel of an active session is rejected.
	req := httptest.NewRequest(http.MethodDelete, "/api/job-status/sess_cancel", nil)
	rec := httptest.NewRecorder()
	h.HandleJobStatus(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Confirmed cancel stops tracking.
	req = httptest.NewRequest(http.MethodDelete, "/api/job-status/sess_cancel?confirm=true", nil)
	rec = httptest.NewRecorder()
	h.HandleJobStatus(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Second cancel finds nothing.
	req = httptest.NewRequest(http.MethodDelete, "/api/job-status/sess_cancel?confirm=true", nil)
	rec = httptest.NewRecorder()
	h.HandleJobStatus(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobHandlerMissingID(t *testing.T) {
	jobs := &fakeJobService{}
	h := NewJobHandler(jobs, newTestRegistry(t, jobs), common.GetLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/job-status/", nil)
	rec := httptest.NewRecorder()
	h.HandleJobStatus(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func newTestReportService(t *testing.T, sessions interfaces.SessionStorage) *reports.Service {
	t.Helper()

	dir := t.TempDir()
	samplePath := filepath.Join(dir, "sample-report.md")
	require.NoError(t, os.WriteFile(samplePath, []byte("# Sample\n"), 0644))

	cfg := &common.ChatConfig{
		SampleReportPath: samplePath,
		DocumentTextDir:  dir,
		DefaultDocument:  "employment-agreement.pdf",
		LogSummaryLines:  20,
	}
	return reports.NewService(sessions, cfg, common.GetLogger())
}

func TestReportHandler(t *testing.T) {
	sessions := newMemorySessions()
	require.NoError(t, sessions.SaveSession(context.Background(), &models.SessionDocument{
		SessionID:  "sess_rep",
		Report:     "# Report\n\n**done**",
		Provenance: models.ProvenanceLive,
	}))

	h := NewReportHandler(newTestReportService(t, sessions), common.GetLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/report/sess_rep", nil)
	rec := httptest.NewRecorder()
	h.GetReport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "live", body["provenance"])
	assert.Contains(t, body["report"], "# Report")
}

func TestReportHandlerHTML(t *testing.T) {
	sessions := newMemorySessions()
	require.NoError(t, sessions.SaveSession(context.Background(), &models.SessionDocument{
		SessionID: "sess_html",
		Report:    "# Heading",
	}))

	h := NewReportHandler(newTestReportService(t, sessions), common.GetLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/report/sess_html?format=html", nil)
	rec := httptest.NewRecorder()
	h.GetReport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<h1")
}

func TestReportHandlerNotFound(t *testing.T) {
	h := NewReportHandler(newTestReportService(t, newMemorySessions()), common.GetLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/report/sess_nope", nil)
	rec := httptest.NewRecorder()
	h.GetReport(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func newTestChatHandler(t *testing.T, sessions interfaces.SessionStorage, rps float64) *ChatHandler {
	t.Helper()

	reportService := newTestReportService(t, sessions)
	cfg := &common.ChatConfig{
		SampleReportPath: "ignored",
		DocumentTextDir:  t.TempDir(),
		DefaultDocument:  "employment-agreement.pdf",
		LogSummaryLines:  20,
	}
	// No LLM wired: answers come from the fallback responder.
	chatService := chat.NewService(nil, reportService, cfg, common.GetLogger())
	return NewChatHandler(chatService, rps, common.GetLogger())
}

func TestChatHandler(t *testing.T) {
	sessions := newMemorySessions()
	require.NoError(t, sessions.SaveSession(context.Background(), &models.SessionDocument{
		SessionID: "sess_chat",
		Report:    "# Report",
	}))

	h := newTestChatHandler(t, sessions, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"What are the critical issues?","session_id":"sess_chat"}`))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["fallback"])
	assert.NotEmpty(t, body["response"])
}

func TestChatHandlerValidation(t *testing.T) {
	h := newTestChatHandler(t, newMemorySessions(), 0)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing message", `{"session_id":"sess_1"}`, http.StatusBadRequest},
		{"missing session", `{"message":"hi"}`, http.StatusBadRequest},
		{"unknown session", `{"message":"hi","session_id":"sess_unknown"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Chat(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestChatHandlerRateLimit(t *testing.T) {
	sessions := newMemorySessions()
	require.NoError(t, sessions.SaveSession(context.Background(), &models.SessionDocument{
		SessionID: "sess_rl",
		Report:    "# Report",
	}))

	h := newTestChatHandler(t, sessions, 1)

	limited := false
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/chat",
			strings.NewReader(`{"message":"hi","session_id":"sess_rl"}`))
		rec := httptest.NewRecorder()
		h.Chat(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "burst of requests should trip the rate limit")
}
