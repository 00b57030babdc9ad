package tracking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/lexiguard/internal/common"
	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/models"
	"github.com/ternarybob/lexiguard/internal/services/events"
)

// fakeJobService scripts poll responses: transport errors first, then a
// sequence of statuses, holding the last one.
type fakeJobService struct {
	mu       sync.Mutex
	failures int
	statuses []models.Job
	calls    int
}

func (f *fakeJobService) Submit(ctx context.Context, documentRef string) (string, error) {
	return "sess_fake", nil
}

func (f *fakeJobService) Status(ctx context.Context, sessionID string) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failures > 0 {
		f.failures--
		return models.Job{}, fmt.Errorf("connection refused")
	}

	idx := f.calls - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	if idx < 0 {
		return models.Job{SessionID: sessionID, RawStatus: "running"}, nil
	}
	job := f.statuses[idx]
	job.SessionID = sessionID
	return job, nil
}

func (f *fakeJobService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memorySessionStorage is an in-memory SessionStorage for tests.
type memorySessionStorage struct {
	mu   sync.Mutex
	docs map[string]*models.SessionDocument
}

func newMemorySessionStorage() *memorySessionStorage {
	return &memorySessionStorage{docs: make(map[string]*models.SessionDocument)}
}

func (m *memorySessionStorage) SaveSession(ctx context.Context, session *models.SessionDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[session.SessionID] = session
	return nil
}

func (m *memorySessionStorage) GetSession(ctx context.Context, sessionID string) (*models.SessionDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[sessionID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return doc, nil
}

func (m *memorySessionStorage) ListSessions(ctx context.Context, limit int) ([]*models.SessionDocument, error) {
	return nil, nil
}

func (m *memorySessionStorage) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, sessionID)
	return nil
}

func (m *memorySessionStorage) DeleteSessionsOlderThan(ctx context.Context, days int) (int, error) {
	return 0, nil
}

func testConfig() Config {
	return Config{
		PollInterval: 10 * time.Millisecond,
		TickInterval: 5 * time.Millisecond,
		Estimator: EstimatorConfig{
			SimulatedCeiling:  95,
			SimulatedFraction: 0.08,
			AssumedDuration:   2 * time.Minute,
		},
	}
}

func waitForOutcome(t *testing.T, outcomes <-chan OutcomeEvent) OutcomeEvent {
	t.Helper()
	select {
	case ev := <-outcomes:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for tracking outcome")
		return OutcomeEvent{}
	}
}

func subscribeOutcomes(bus interfaces.EventService) <-chan OutcomeEvent {
	outcomes := make(chan OutcomeEvent, 16)
	bus.Subscribe(interfaces.EventOutcome, func(ctx context.Context, event interfaces.Event) {
		if ev, ok := event.Payload.(OutcomeEvent); ok {
			outcomes <- ev
		}
	})
	return outcomes
}

func TestRegistrySurvivesTransientPollFailures(t *testing.T) {
	logger := common.GetLogger()
	bus := events.NewService(logger)
	sessions := newMemorySessionStorage()

	jobs := &fakeJobService{
		failures: 3,
		statuses: []models.Job{
			{RawStatus: "running"},
			{RawStatus: "success", Report: "# Report", LogFile: "line1\nline2"},
		},
	}

	registry := NewRegistry(jobs, bus, sessions, logger, testConfig())
	defer registry.Shutdown()

	outcomes := subscribeOutcomes(bus)

	require.NoError(t, registry.Track("sess_1"))

	ev := waitForOutcome(t, outcomes)
	assert.Equal(t, "sess_1", ev.SessionID)
	assert.Equal(t, OutcomeSucceeded, ev.Outcome.Kind)
	assert.Equal(t, "sess_1", ev.Outcome.ReportRef)

	// Exactly one outcome: nothing else may arrive.
	select {
	case extra := <-outcomes:
		t.Fatalf("unexpected second outcome: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}

	// The successful report was persisted with live provenance.
	doc, err := sessions.GetSession(context.Background(), "sess_1")
	require.NoError(t, err)
	assert.Equal(t, "# Report", doc.Report)
	assert.Equal(t, models.ProvenanceLive, doc.Provenance)
}

func TestRegistryFailedJob(t *testing.T) {
	logger := common.GetLogger()
	bus := events.NewService(logger)

	jobs := &fakeJobService{
		statuses: []models.Job{
			{RawStatus: "failed", Message: "OCR stage crashed"},
		},
	}

	registry := NewRegistry(jobs, bus, newMemorySessionStorage(), logger, testConfig())
	defer registry.Shutdown()

	outcomes := subscribeOutcomes(bus)
	require.NoError(t, registry.Track("sess_2"))

	ev := waitForOutcome(t, outcomes)
	assert.Equal(t, OutcomeFailed, ev.Outcome.Kind)
	assert.Equal(t, "OCR stage crashed", ev.Outcome.Reason)

	snap, ok := registry.Snapshot("sess_2")
	require.True(t, ok)
	assert.Equal(t, 100, snap.Progress.Percent)
	assert.True(t, snap.Progress.Terminal)
	assert.False(t, snap.Active)
}

func TestRegistryTimeout(t *testing.T) {
	logger := common.GetLogger()
	bus := events.NewService(logger)

	// The backend never reaches a terminal status.
	jobs := &fakeJobService{
		statuses: []models.Job{{RawStatus: "running"}},
	}

	cfg := testConfig()
	cfg.MaxWait = 50 * time.Millisecond

	registry := NewRegistry(jobs, bus, newMemorySessionStorage(), logger, cfg)
	defer registry.Shutdown()

	outcomes := subscribeOutcomes(bus)
	require.NoError(t, registry.Track("sess_3"))

	ev := waitForOutcome(t, outcomes)
	assert.Equal(t, OutcomeTimedOut, ev.Outcome.Kind)
}

func TestRegistryRejectsDuplicateTracking(t *testing.T) {
	logger := common.GetLogger()
	bus := events.NewService(logger)

	jobs := &fakeJobService{statuses: []models.Job{{RawStatus: "running"}}}
	registry := NewRegistry(jobs, bus, newMemorySessionStorage(), logger, testConfig())
	defer registry.Shutdown()

	require.NoError(t, registry.Track("sess_4"))
	assert.ErrorIs(t, registry.Track("sess_4"), ErrAlreadyTracking)
	assert.Equal(t, 1, registry.ActiveCount())
}

func TestRegistryCancelRequiresConfirmation(t *testing.T) {
	logger := common.GetLogger()
	bus := events.NewService(logger)

	jobs := &fakeJobService{statuses: []models.Job{{RawStatus: "running"}}}
	registry := NewRegistry(jobs, bus, newMemorySessionStorage(), logger, testConfig())
	defer registry.Shutdown()

	require.NoError(t, registry.Track("sess_5"))

	assert.ErrorIs(t, registry.Cancel("sess_5", false), ErrConfirmRequired)
	require.NoError(t, registry.Cancel("sess_5", true))

	_, ok := registry.Snapshot("sess_5")
	assert.False(t, ok)
	assert.ErrorIs(t, registry.Cancel("sess_5", true), ErrNotTracking)

	// Polling must stop with the tracker: no further backend calls after the
	// confirmed cancel.
	polled := jobs.callCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, polled, jobs.callCount())
}

func TestRegistryPruneFinished(t *testing.T) {
	logger := common.GetLogger()
	bus := events.NewService(logger)

	jobs := &fakeJobService{statuses: []models.Job{{RawStatus: "success"}}}
	registry := NewRegistry(jobs, bus, newMemorySessionStorage(), logger, testConfig())
	defer registry.Shutdown()

	outcomes := subscribeOutcomes(bus)
	require.NoError(t, registry.Track("sess_6"))
	waitForOutcome(t, outcomes)

	// Too young to prune.
	assert.Equal(t, 0, registry.PruneFinished(time.Hour))

	// Old enough.
	assert.Equal(t, 1, registry.PruneFinished(-time.Second))
	_, ok := registry.Snapshot("sess_6")
	assert.False(t, ok)
}
