package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/lexiguard/internal/common"
	"github.com/ternarybob/lexiguard/internal/tracking"
)

// StatusHandler serves health and version endpoints.
type StatusHandler struct {
	registry  *tracking.Registry
	startedAt time.Time
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(registry *tracking.Registry) *StatusHandler {
	return &StatusHandler{
		registry:  registry,
		startedAt: time.Now(),
	}
}

// Health handles GET /api/health.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"version":         common.GetVersion(),
		"uptime_seconds":  int(time.Since(h.startedAt).Seconds()),
		"active_sessions": h.registry.ActiveCount(),
	})
}

// Version handles GET /api/version.
func (h *StatusHandler) Version(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}
