// Package scheduler runs periodic housekeeping: pruning finished tracking
// sessions and expiring old session documents.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/tracking"
)

const (
	// Finished trackers are kept briefly so late UI polls still see the outcome.
	trackerRetention = 10 * time.Minute

	// Session documents older than this are expired.
	sessionRetentionDays = 30
)

// Service implements cron-driven housekeeping.
type Service struct {
	cron     *cron.Cron
	registry *tracking.Registry
	sessions interfaces.SessionStorage
	logger   arbor.ILogger

	mu      sync.Mutex
	running bool
}

// NewService creates a scheduler service.
func NewService(registry *tracking.Registry, sessions interfaces.SessionStorage, logger arbor.ILogger) *Service {
	return &Service{
		cron:     cron.New(),
		registry: registry,
		sessions: sessions,
		logger:   logger,
	}
}

// Start registers the housekeeping jobs and starts the cron loop.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := s.cron.AddFunc("*/5 * * * *", s.pruneTrackers); err != nil {
		return fmt.Errorf("failed to register tracker pruning job: %w", err)
	}
	if _, err := s.cron.AddFunc("@daily", s.pruneSessions); err != nil {
		return fmt.Errorf("failed to register session expiry job: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Msg("Housekeeping scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Housekeeping scheduler stopped")
}

func (s *Service) pruneTrackers() {
	pruned := s.registry.PruneFinished(trackerRetention)
	if pruned > 0 {
		s.logger.Info().Int("pruned", pruned).Msg("Pruned finished tracking sessions")
	}
}

func (s *Service) pruneSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.sessions.DeleteSessionsOlderThan(ctx, sessionRetentionDays)
	if err != nil {
		s.logger.Error().Err(err).Msg("Session expiry failed")
		return
	}
	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("Expired old session documents")
	}
}
