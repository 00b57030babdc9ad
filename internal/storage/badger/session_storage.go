package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/models"
)

// SessionStorage implements the SessionStorage interface for Badger
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SessionStorage) SaveSession(ctx context.Context, session *models.SessionDocument) error {
	if session.SessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	session.UpdatedAt = time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}

	if err := s.db.Store().Upsert(session.SessionID, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStorage) GetSession(ctx context.Context, sessionID string) (*models.SessionDocument, error) {
	var session models.SessionDocument
	if err := s.db.Store().Get(sessionID, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("session %s: %w", sessionID, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *SessionStorage) ListSessions(ctx context.Context, limit int) ([]*models.SessionDocument, error) {
	query := badgerhold.Where("SessionID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []models.SessionDocument
	if err := s.db.Store().Find(&sessions, query); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	result := make([]*models.SessionDocument, len(sessions))
	for i := range sessions {
		result[i] = &sessions[i]
	}
	return result, nil
}

func (s *SessionStorage) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.db.Store().Delete(sessionID, &models.SessionDocument{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("session %s: %w", sessionID, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SessionStorage) DeleteSessionsOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	var stale []models.SessionDocument
	if err := s.db.Store().Find(&stale, badgerhold.Where("UpdatedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to find stale sessions: %w", err)
	}

	deleted := 0
	for _, session := range stale {
		if err := s.db.Store().Delete(session.SessionID, &models.SessionDocument{}); err != nil {
			s.logger.Warn().Err(err).Str("session_id", session.SessionID).Msg("Failed to delete stale session")
			continue
		}
		deleted++
	}
	return deleted, nil
}
