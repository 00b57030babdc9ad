package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/models"
)

// Config tunes a tracking session.
type Config struct {
	PollInterval  time.Duration
	TickInterval  time.Duration
	MaxWait       time.Duration // zero disables the timeout
	FailurePolicy FailurePolicy
	Estimator     EstimatorConfig
}

// ProgressEvent is published on every progress update.
type ProgressEvent struct {
	SessionID string           `json:"session_id"`
	Status    models.JobStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
	Progress  ProgressState    `json:"progress"`
}

// OutcomeEvent is published exactly once when a session reaches its outcome.
type OutcomeEvent struct {
	SessionID string  `json:"session_id"`
	Outcome   Outcome `json:"outcome"`
}

// Snapshot is a point-in-time view of a tracking session.
type Snapshot struct {
	SessionID string           `json:"session_id"`
	Status    models.JobStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
	Progress  ProgressState    `json:"progress"`
	Outcome   *Outcome         `json:"outcome,omitempty"`
	Active    bool             `json:"active"`
}

// Tracker drives one session: a slow real-status poll ticker and a fast
// cosmetic progress ticker. Both stop together when the session ends.
type Tracker struct {
	sessionID  string
	jobs       interfaces.JobService
	events     interfaces.EventService
	logger     arbor.ILogger
	cfg        Config
	estimator  *Estimator
	reconciler *Reconciler

	mu         sync.Mutex
	progress   ProgressState
	lastJob    models.Job
	outcome    *Outcome
	finishedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	// onFinished is invoked once, after the outcome latched and the timers
	// stopped. Wired by the registry to persist results.
	onFinished func(outcome Outcome, job models.Job)
}

func newTracker(
	sessionID string,
	jobs interfaces.JobService,
	events interfaces.EventService,
	logger arbor.ILogger,
	cfg Config,
	onFinished func(outcome Outcome, job models.Job),
) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	now := time.Now()
	return &Tracker{
		sessionID:  sessionID,
		jobs:       jobs,
		events:     events,
		logger:     logger,
		cfg:        cfg,
		estimator:  NewEstimator(cfg.Estimator, now),
		reconciler: NewReconciler(cfg.FailurePolicy, cfg.MaxWait, now),
		done:       make(chan struct{}),
		onFinished: onFinished,
	}
}

func (t *Tracker) start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	go t.run(ctx)
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)

	pollTicker := time.NewTicker(t.cfg.PollInterval)
	defer pollTicker.Stop()
	tickTicker := time.NewTicker(t.cfg.TickInterval)
	defer tickTicker.Stop()

	// Poll immediately, then on the fixed cadence.
	if t.pollOnce(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug().Str("session_id", t.sessionID).Msg("Tracking cancelled")
			return
		case now := <-tickTicker.C:
			t.mu.Lock()
			state := t.estimator.Tick(now)
			t.progress = state
			job := t.lastJob
			t.mu.Unlock()
			t.publishProgress(ctx, job, state)
		case <-pollTicker.C:
			if t.pollOnce(ctx) {
				return
			}
		}
	}
}

// pollOnce performs one status poll. It returns true when the session reached
// its terminal outcome and the loop must stop.
func (t *Tracker) pollOnce(ctx context.Context) bool {
	job, err := t.jobs.Status(ctx, t.sessionID)
	now := time.Now()

	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		// A single failed poll is swallowed; transient backend unavailability
		// during a multi-minute job must not abort tracking.
		t.logger.Warn().Err(err).Str("session_id", t.sessionID).Msg("Status poll failed, will retry")

		if outcome, fired := t.reconciler.CheckTimeout(now); fired {
			t.finish(ctx, outcome, models.Job{SessionID: t.sessionID})
			return true
		}
		return false
	}

	sample := models.PollSample{ObservedAt: now, Job: job}

	t.mu.Lock()
	state := t.estimator.Observe(sample)
	t.progress = state
	t.lastJob = job
	t.mu.Unlock()

	t.publishProgress(ctx, job, state)

	if outcome, fired := t.reconciler.Observe(sample); fired {
		t.finish(ctx, outcome, job)
		return true
	}
	if outcome, fired := t.reconciler.CheckTimeout(now); fired {
		t.finish(ctx, outcome, job)
		return true
	}
	return false
}

func (t *Tracker) finish(ctx context.Context, outcome Outcome, job models.Job) {
	t.mu.Lock()
	o := outcome
	t.outcome = &o
	t.finishedAt = time.Now()
	if outcome.Kind == OutcomeSucceeded || outcome.Kind == OutcomeFailed {
		t.progress = ProgressState{Percent: 100, Terminal: true}
	} else {
		t.progress.Terminal = true
	}
	t.mu.Unlock()

	t.logger.Info().
		Str("session_id", t.sessionID).
		Str("outcome", string(outcome.Kind)).
		Str("reason", outcome.Reason).
		Msg("Tracking session finished")

	// Persist before announcing so subscribers reacting to the outcome can
	// immediately read the stored result.
	if t.onFinished != nil {
		t.onFinished(outcome, job)
	}
	if t.events != nil {
		t.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventOutcome,
			Payload: OutcomeEvent{SessionID: t.sessionID, Outcome: outcome},
		})
	}
}

func (t *Tracker) publishProgress(ctx context.Context, job models.Job, state ProgressState) {
	if t.events == nil {
		return
	}
	t.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventProgress,
		Payload: ProgressEvent{
			SessionID: t.sessionID,
			Status:    job.Status(),
			Message:   job.Message,
			Progress:  state,
		},
	})
}

// Snapshot returns the current view of the session.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		SessionID: t.sessionID,
		Status:    t.lastJob.Status(),
		Message:   t.lastJob.Message,
		Progress:  t.progress,
		Active:    t.outcome == nil,
	}
	if t.outcome != nil {
		o := *t.outcome
		snap.Outcome = &o
	}
	return snap
}

// Active reports whether the session has not yet reached an outcome.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome == nil
}

// FinishedAt returns when the outcome fired (zero while active).
func (t *Tracker) FinishedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finishedAt
}

// Stop cancels the tracking loop and waits for both timers to be released.
// Only client-side tracking stops; the backend job keeps running.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	<-t.done
}
