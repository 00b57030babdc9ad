package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/lexiguard/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SessionStorage persists analysis session documents.
type SessionStorage interface {
	SaveSession(ctx context.Context, session *models.SessionDocument) error
	GetSession(ctx context.Context, sessionID string) (*models.SessionDocument, error)
	ListSessions(ctx context.Context, limit int) ([]*models.SessionDocument, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteSessionsOlderThan(ctx context.Context, days int) (int, error)
}

// KeyValueStorage provides generic key/value persistence (API keys, settings).
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StorageManager provides access to all storage services
type StorageManager interface {
	SessionStorage() SessionStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
