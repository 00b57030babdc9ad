package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/jobservice"
	"github.com/ternarybob/lexiguard/internal/models"
	"github.com/ternarybob/lexiguard/internal/tracking"
)

// JobHandler serves job status reads and cancellation.
type JobHandler struct {
	jobs     interfaces.JobService
	registry *tracking.Registry
	logger   arbor.ILogger
}

// NewJobHandler creates a job status handler.
func NewJobHandler(jobs interfaces.JobService, registry *tracking.Registry, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobs:     jobs,
		registry: registry,
		logger:   logger,
	}
}

// jobStatusResponse merges the backend job projection with the local
// tracking view of the same session.
type jobStatusResponse struct {
	SessionID string                 `json:"session_id"`
	Status    models.JobStatus       `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Progress  tracking.ProgressState `json:"progress"`
	Outcome   *tracking.Outcome      `json:"outcome,omitempty"`
	Tracked   bool                   `json:"tracked"`
}

// HandleJobStatus dispatches /api/job-status/{id} by method.
func (h *JobHandler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/job-status/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		WriteError(w, http.StatusBadRequest, "Session id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getStatus(w, r, sessionID)
	case http.MethodDelete:
		h.cancel(w, r, sessionID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *JobHandler) getStatus(w http.ResponseWriter, r *http.Request, sessionID string) {
	resp := jobStatusResponse{SessionID: sessionID}

	if snap, ok := h.registry.Snapshot(sessionID); ok {
		resp.Status = snap.Status
		resp.Message = snap.Message
		resp.Progress = snap.Progress
		resp.Outcome = snap.Outcome
		resp.Tracked = true
		WriteJSON(w, http.StatusOK, resp)
		return
	}

	// Untracked sessions are proxied straight through to the backend.
	job, err := h.jobs.Status(r.Context(), sessionID)
	if err != nil {
		var apiErr *jobservice.APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			WriteError(w, http.StatusNotFound, "Unknown session")
			return
		}
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Status proxy failed")
		WriteError(w, http.StatusBadGateway, "Analysis backend is unreachable")
		return
	}

	resp.Status = job.Status()
	resp.Message = job.Message
	if job.Status().IsTerminal() {
		resp.Progress = tracking.ProgressState{Percent: 100, Terminal: true}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// cancel stops local tracking only. The backend job keeps running, so an
// active session requires ?confirm=true.
func (h *JobHandler) cancel(w http.ResponseWriter, r *http.Request, sessionID string) {
	confirmed := r.URL.Query().Get("confirm") == "true"

	err := h.registry.Cancel(sessionID, confirmed)
	switch {
	case err == nil:
		WriteSuccess(w, "Tracking stopped. The backend job continues to run.")
	case errors.Is(err, tracking.ErrNotTracking):
		WriteError(w, http.StatusNotFound, "Session is not being tracked")
	case errors.Is(err, tracking.ErrConfirmRequired):
		WriteError(w, http.StatusConflict, "Session is still in progress. Re-send with confirm=true to stop tracking; the backend job will keep running.")
	default:
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Cancel failed")
		WriteError(w, http.StatusInternalServerError, "Failed to cancel tracking session")
	}
}
