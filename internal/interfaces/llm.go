package interfaces

import "context"

// Message is a provider-neutral chat message.
type Message struct {
	Role    string // "user", "assistant", or "system"
	Content string
}

// LLMService generates chat completions from an opaque provider.
type LLMService interface {
	// Complete sends the message sequence and returns the generated text.
	Complete(ctx context.Context, messages []Message) (string, error)
	// Model returns the configured model identifier.
	Model() string
}
