package tracking

import (
	"sync"
	"time"

	"github.com/ternarybob/lexiguard/internal/models"
)

// OutcomeKind tags the single terminal result of a tracking session.
type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeTimedOut  OutcomeKind = "timed_out"
)

// Outcome is the single-fire terminal result of a tracking session.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`
	// ReportRef is the session id to fetch the report with. Set for Succeeded.
	ReportRef string `json:"report_ref,omitempty"`
	// Reason carries the backend failure message or timeout description.
	Reason string `json:"reason,omitempty"`
}

// FailurePolicy controls how a reported status=failed is handled.
type FailurePolicy string

const (
	// FailurePolicyFail treats status=failed as terminal.
	FailurePolicyFail FailurePolicy = "fail"
	// FailurePolicyContinue logs the failure and keeps polling. Some
	// deployments prefer this because their backend retries failed jobs
	// in place.
	FailurePolicyContinue FailurePolicy = "continue"
)

// Reconciler decides the one terminal transition for a tracking session.
// The latch guards against duplicate emission: the poller may deliver one
// more in-flight sample after the terminal one is processed.
type Reconciler struct {
	mu        sync.Mutex
	done      bool
	policy    FailurePolicy
	maxWait   time.Duration // zero disables the timeout
	startedAt time.Time
}

// NewReconciler creates a reconciler in the Tracking state.
func NewReconciler(policy FailurePolicy, maxWait time.Duration, startedAt time.Time) *Reconciler {
	if policy != FailurePolicyContinue {
		policy = FailurePolicyFail
	}
	return &Reconciler{
		policy:    policy,
		maxWait:   maxWait,
		startedAt: startedAt,
	}
}

// Observe evaluates a poll sample. It returns the terminal outcome and true
// exactly once per session; every later call returns false.
func (r *Reconciler) Observe(sample models.PollSample) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return Outcome{}, false
	}

	switch sample.Job.Status() {
	case models.JobStatusSuccess:
		r.done = true
		return Outcome{Kind: OutcomeSucceeded, ReportRef: sample.Job.SessionID}, true
	case models.JobStatusFailed:
		if r.policy == FailurePolicyContinue {
			return Outcome{}, false
		}
		r.done = true
		reason := sample.Job.Message
		if reason == "" {
			reason = "analysis failed"
		}
		return Outcome{Kind: OutcomeFailed, Reason: reason}, true
	default:
		return Outcome{}, false
	}
}

// CheckTimeout emits TimedOut once the configured maximum wait has elapsed
// without a terminal status. Returns false when the timeout is disabled,
// not yet reached, or an outcome already fired.
func (r *Reconciler) CheckTimeout(now time.Time) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done || r.maxWait <= 0 {
		return Outcome{}, false
	}
	if now.Sub(r.startedAt) < r.maxWait {
		return Outcome{}, false
	}

	r.done = true
	return Outcome{
		Kind:   OutcomeTimedOut,
		Reason: "no terminal status after " + r.maxWait.String(),
	}, true
}

// Done reports whether the terminal outcome has fired.
func (r *Reconciler) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
