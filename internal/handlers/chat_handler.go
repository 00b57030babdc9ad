package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/models"
	"github.com/ternarybob/lexiguard/internal/services/chat"
)

// ChatHandler serves the compliance chat endpoint.
type ChatHandler struct {
	chat    *chat.Service
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewChatHandler creates a chat handler. requestsPerSecond bounds how fast
// questions reach the LLM provider; zero or negative disables limiting.
func NewChatHandler(chatService *chat.Service, requestsPerSecond float64, logger arbor.ILogger) *ChatHandler {
	limit := rate.Limit(requestsPerSecond)
	burst := int(requestsPerSecond) + 1
	if requestsPerSecond <= 0 {
		limit = rate.Inf
		burst = 1
	}
	return &ChatHandler{
		chat:    chatService,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if !h.limiter.Allow() {
		WriteError(w, http.StatusTooManyRequests, "Too many chat requests, slow down")
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		WriteError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		WriteError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	resp, err := h.chat.Ask(r.Context(), &req)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Unknown session")
			return
		}
		h.logger.Error().Err(err).Str("session_id", req.SessionID).Msg("Chat request failed")
		WriteError(w, http.StatusInternalServerError, "Failed to answer question")
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}
