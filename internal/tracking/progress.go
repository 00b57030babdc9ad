// Package tracking hosts per-session job tracking: status polling, progress
// estimation, and completion reconciliation for analysis jobs running on the
// external backend.
package tracking

import (
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/lexiguard/internal/models"
)

// ProgressState is the user-facing progress view for one tracking session.
// Percent is non-decreasing across the session; terminal samples force 100.
type ProgressState struct {
	Percent   int           `json:"percent"`
	Remaining time.Duration `json:"-"`
	// RemainingText is the human-readable countdown ("1m 30s"). Empty once terminal.
	RemainingText string `json:"remaining,omitempty"`
	Terminal      bool   `json:"terminal"`
}

// EstimatorConfig tunes progress estimation.
type EstimatorConfig struct {
	// SimulatedCeiling is the asymptote for simulated progress, below 100.
	SimulatedCeiling float64
	// SimulatedFraction is the share of the remaining gap consumed per tick.
	SimulatedFraction float64
	// AssumedDuration drives the coarse countdown shown before the backend
	// commits to a time estimate.
	AssumedDuration time.Duration
}

// Estimator converts poll samples and cosmetic ticks into a monotonic
// ProgressState. It is not safe for concurrent use; the owning Tracker
// serializes all calls.
type Estimator struct {
	cfg       EstimatorConfig
	state     ProgressState
	simulated float64 // fractional simulated percent, kept so convergence accrues between ticks
	startedAt time.Time
	lastJob   *models.Job
}

// NewEstimator creates an estimator for a session that started at startedAt.
func NewEstimator(cfg EstimatorConfig, startedAt time.Time) *Estimator {
	if cfg.SimulatedCeiling <= 0 || cfg.SimulatedCeiling >= 100 {
		cfg.SimulatedCeiling = 95
	}
	if cfg.SimulatedFraction <= 0 || cfg.SimulatedFraction >= 1 {
		cfg.SimulatedFraction = 0.08
	}
	if cfg.AssumedDuration <= 0 {
		cfg.AssumedDuration = 2 * time.Minute
	}
	return &Estimator{
		cfg:       cfg,
		startedAt: startedAt,
	}
}

// State returns the current progress state.
func (e *Estimator) State() ProgressState {
	return e.state
}

// Observe folds a poll sample into the progress state.
func (e *Estimator) Observe(sample models.PollSample) ProgressState {
	job := sample.Job
	e.lastJob = &job

	if job.Status().IsTerminal() {
		// Terminal status always wins regardless of timing fields.
		e.state = ProgressState{Percent: 100, Terminal: true}
		return e.state
	}

	return e.advance(sample.ObservedAt)
}

// Tick advances the progress state between polls. With backend timing it
// recomputes the elapsed fraction at now; without it, it moves simulated
// progress toward the ceiling.
func (e *Estimator) Tick(now time.Time) ProgressState {
	if e.state.Terminal {
		return e.state
	}
	return e.advance(now)
}

func (e *Estimator) advance(now time.Time) ProgressState {
	if e.lastJob != nil && e.lastJob.HasTiming() {
		return e.advanceTimed(*e.lastJob, now)
	}
	return e.advanceSimulated(now)
}

// advanceTimed computes elapsed/(finish-start), clamped to [0, 99] while the
// job is still running.
func (e *Estimator) advanceTimed(job models.Job, now time.Time) ProgressState {
	start := job.EffectiveStart().Time
	finish := job.ExpectedFinishTime.Time

	total := finish.Sub(start)
	if total <= 0 {
		// Degenerate estimate (clock skew or finish before start): treat as
		// timing unavailable rather than dividing by zero.
		return e.advanceSimulated(now)
	}

	fraction := now.Sub(start).Seconds() / total.Seconds()
	if fraction < 0 {
		fraction = 0
	}
	percent := int(math.Round(fraction * 100))
	if percent > 99 {
		percent = 99 // never claim 100% while still running
	}

	remaining := finish.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	return e.apply(percent, remaining)
}

// advanceSimulated produces perceived liveness before the backend reports
// timing: each tick moves a fixed fraction of the remaining gap toward the
// ceiling, so progress converges but never reaches it.
func (e *Estimator) advanceSimulated(now time.Time) ProgressState {
	if e.simulated < float64(e.state.Percent) {
		e.simulated = float64(e.state.Percent)
	}
	e.simulated += (e.cfg.SimulatedCeiling - e.simulated) * e.cfg.SimulatedFraction

	// No reliable estimate on this path; present a coarse fixed-duration countdown.
	remaining := e.cfg.AssumedDuration - now.Sub(e.startedAt)
	if remaining < 0 {
		remaining = 0
	}

	return e.apply(int(e.simulated), remaining)
}

// apply enforces the monotonicity invariant and records the new state.
func (e *Estimator) apply(percent int, remaining time.Duration) ProgressState {
	if percent < e.state.Percent {
		percent = e.state.Percent
	}
	e.state = ProgressState{
		Percent:       percent,
		Remaining:     remaining,
		RemainingText: FormatRemaining(remaining),
	}
	return e.state
}

// FormatRemaining renders a duration as the "1m 30s" countdown string.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
