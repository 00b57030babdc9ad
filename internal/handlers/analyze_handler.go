package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/jobservice"
	"github.com/ternarybob/lexiguard/internal/tracking"
)

// AnalyzeHandler submits documents for analysis and starts tracking.
type AnalyzeHandler struct {
	jobs     interfaces.JobService
	registry *tracking.Registry
	logger   arbor.ILogger
}

// NewAnalyzeHandler creates an analyze handler.
func NewAnalyzeHandler(jobs interfaces.JobService, registry *tracking.Registry, logger arbor.ILogger) *AnalyzeHandler {
	return &AnalyzeHandler{
		jobs:     jobs,
		registry: registry,
		logger:   logger,
	}
}

type analyzeRequest struct {
	DocumentRef string `json:"document_ref"`
}

type analyzeResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// Analyze handles POST /api/analyze. A failed submission is surfaced to the
// caller and no tracking session is started.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DocumentRef == "" {
		WriteError(w, http.StatusBadRequest, "document_ref is required")
		return
	}

	sessionID, err := h.jobs.Submit(r.Context(), req.DocumentRef)
	if err != nil {
		h.logger.Error().Err(err).Str("document_ref", req.DocumentRef).Msg("Analysis submission failed")

		var apiErr *jobservice.APIError
		if errors.As(err, &apiErr) {
			WriteError(w, http.StatusBadGateway, "Analysis backend rejected the submission: "+apiErr.Message)
			return
		}
		WriteError(w, http.StatusBadGateway, "Analysis backend is unreachable, please retry")
		return
	}

	if err := h.registry.Track(sessionID); err != nil {
		if errors.Is(err, tracking.ErrAlreadyTracking) {
			WriteError(w, http.StatusConflict, "Session is already being tracked")
			return
		}
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to start tracking session")
		WriteError(w, http.StatusInternalServerError, "Failed to start tracking session")
		return
	}

	WriteJSON(w, http.StatusAccepted, analyzeResponse{
		SessionID: sessionID,
		Status:    "tracking",
	})
}
