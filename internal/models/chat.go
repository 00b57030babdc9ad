package models

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", or "system"
	Content string `json:"content"`
}

// ChatRequest is the inbound payload for the chat proxy.
type ChatRequest struct {
	Message   string        `json:"message"`
	SessionID string        `json:"session_id"`
	History   []ChatMessage `json:"history,omitempty"`
}

// ChatResponse is the chat proxy reply. Fallback responses are flagged so
// the caller can tell a canned answer from a live completion.
type ChatResponse struct {
	Response string `json:"response"`
	Model    string `json:"model,omitempty"`
	Fallback bool   `json:"fallback"`
}
