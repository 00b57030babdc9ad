package interfaces

import (
	"context"

	"github.com/ternarybob/lexiguard/internal/models"
)

// JobService talks to the external document-analysis backend.
type JobService interface {
	// Submit starts an analysis for the referenced document and returns the
	// opaque session id used by every subsequent call. A failed submission is
	// terminal for that attempt; it is never retried at this layer.
	Submit(ctx context.Context, documentRef string) (string, error)

	// Status fetches the current job projection for a session.
	Status(ctx context.Context, sessionID string) (models.Job, error)
}
