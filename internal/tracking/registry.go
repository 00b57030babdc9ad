package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/models"
)

var (
	// ErrAlreadyTracking is returned when a session is already being tracked.
	ErrAlreadyTracking = errors.New("session is already being tracked")
	// ErrNotTracking is returned when no tracker exists for a session.
	ErrNotTracking = errors.New("session is not being tracked")
	// ErrConfirmRequired is returned when cancelling a non-terminal session
	// without explicit confirmation. The backend job keeps running either way;
	// confirmation prevents the user orphaning a job they believe was stopped.
	ErrConfirmRequired = errors.New("cancelling an active session requires confirmation")
)

// Registry owns all tracking sessions.
type Registry struct {
	mu       sync.Mutex
	trackers map[string]*Tracker

	jobs     interfaces.JobService
	events   interfaces.EventService
	sessions interfaces.SessionStorage
	logger   arbor.ILogger
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRegistry creates a tracking registry.
func NewRegistry(
	jobs interfaces.JobService,
	events interfaces.EventService,
	sessions interfaces.SessionStorage,
	logger arbor.ILogger,
	cfg Config,
) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		trackers: make(map[string]*Tracker),
		jobs:     jobs,
		events:   events,
		sessions: sessions,
		logger:   logger,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Track starts a tracking session for a freshly submitted job.
func (r *Registry) Track(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.trackers[sessionID]; ok && existing.Active() {
		return ErrAlreadyTracking
	}

	t := newTracker(sessionID, r.jobs, r.events, r.logger, r.cfg, func(outcome Outcome, job models.Job) {
		r.persistOutcome(sessionID, outcome, job)
	})
	r.trackers[sessionID] = t
	t.start(r.ctx)

	r.logger.Info().Str("session_id", sessionID).Msg("Tracking session started")
	return nil
}

// persistOutcome writes the session document for a successful analysis so the
// report survives tracker teardown.
func (r *Registry) persistOutcome(sessionID string, outcome Outcome, job models.Job) {
	if r.sessions == nil || outcome.Kind != OutcomeSucceeded {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	doc := &models.SessionDocument{
		SessionID:  sessionID,
		Status:     string(models.JobStatusSuccess),
		Report:     job.Report,
		LogFile:    job.LogFile,
		DocumentID: job.DocumentID,
		PDFPath:    job.PDFPath,
		Provenance: models.ProvenanceLive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.sessions.SaveSession(ctx, doc); err != nil {
		r.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to persist session document")
	}
}

// Snapshot returns the current view of a tracked session.
func (r *Registry) Snapshot(sessionID string) (Snapshot, bool) {
	r.mu.Lock()
	t, ok := r.trackers[sessionID]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return t.Snapshot(), true
}

// Cancel stops tracking a session. Cancelling before a terminal outcome
// requires confirmed=true.
func (r *Registry) Cancel(sessionID string, confirmed bool) error {
	r.mu.Lock()
	t, ok := r.trackers[sessionID]
	r.mu.Unlock()
	if !ok {
		return ErrNotTracking
	}

	if t.Active() && !confirmed {
		return ErrConfirmRequired
	}

	t.Stop()

	r.mu.Lock()
	delete(r.trackers, sessionID)
	r.mu.Unlock()

	r.logger.Info().Str("session_id", sessionID).Msg("Tracking session cancelled")
	return nil
}

// PruneFinished drops finished trackers older than maxAge and returns how
// many were removed. Active trackers are never pruned.
func (r *Registry) PruneFinished(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for id, t := range r.trackers {
		if t.Active() {
			continue
		}
		if finishedAt := t.FinishedAt(); !finishedAt.IsZero() && finishedAt.Before(cutoff) {
			delete(r.trackers, id)
			pruned++
		}
	}
	return pruned
}

// ActiveCount returns the number of sessions still tracking.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, t := range r.trackers {
		if t.Active() {
			count++
		}
	}
	return count
}

// Shutdown stops every tracker and waits for their timers to be released.
func (r *Registry) Shutdown() {
	r.cancel()

	r.mu.Lock()
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	r.trackers = make(map[string]*Tracker)
	r.mu.Unlock()

	for _, t := range trackers {
		t.Stop()
	}
}
