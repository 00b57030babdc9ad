package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/models"
	"github.com/ternarybob/lexiguard/internal/services/reports"
)

// ReportHandler serves analysis reports.
type ReportHandler struct {
	reports *reports.Service
	logger  arbor.ILogger
}

// NewReportHandler creates a report handler.
func NewReportHandler(reportService *reports.Service, logger arbor.ILogger) *ReportHandler {
	return &ReportHandler{
		reports: reportService,
		logger:  logger,
	}
}

type reportResponse struct {
	SessionID  string            `json:"session_id"`
	Report     string            `json:"report"`
	Provenance models.Provenance `json:"provenance"`
}

// GetReport handles GET /api/report/{id}. With ?format=html the report
// markdown is rendered server side.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/report/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		WriteError(w, http.StatusBadRequest, "Session id is required")
		return
	}

	doc, err := h.reports.GetReport(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "No report found for session")
			return
		}
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Report read failed")
		WriteError(w, http.StatusInternalServerError, "Failed to read report")
		return
	}

	if r.URL.Query().Get("format") == "html" {
		html, err := h.reports.RenderHTML(doc.Report)
		if err != nil {
			h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Report render failed")
			WriteError(w, http.StatusInternalServerError, "Failed to render report")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Report-Provenance", string(doc.Provenance))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(html))
		return
	}

	WriteJSON(w, http.StatusOK, reportResponse{
		SessionID:  doc.SessionID,
		Report:     doc.Report,
		Provenance: doc.Provenance,
	})
}
