// Package reports serves persisted analysis reports with a static fallback.
package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/lexiguard/internal/common"
	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/models"
)

// Service reads session documents from the primary store, falling back to a
// bundled sample report when the store is unreachable. Fallback results are
// marked with ProvenanceSample so they are never conflated with live data.
type Service struct {
	sessions         interfaces.SessionStorage
	sampleReportPath string
	markdown         goldmark.Markdown
	logger           arbor.ILogger
}

// NewService creates a report service.
func NewService(sessions interfaces.SessionStorage, cfg *common.ChatConfig, logger arbor.ILogger) *Service {
	return &Service{
		sessions:         sessions,
		sampleReportPath: cfg.SampleReportPath,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		logger: logger,
	}
}

// GetReport fetches the session document for a session id.
// Unknown sessions surface interfaces.ErrNotFound; store transport failures
// fall back to the sample report for demonstration continuity.
func (s *Service) GetReport(ctx context.Context, sessionID string) (*models.SessionDocument, error) {
	doc, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, err
		}

		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Session store unavailable, serving sample report")
		return s.sampleDocument(sessionID)
	}

	doc.Report = common.StripMarkdownFence(doc.Report)
	return doc, nil
}

// sampleDocument loads the static sample report, flagged as sample provenance.
func (s *Service) sampleDocument(sessionID string) (*models.SessionDocument, error) {
	report, err := s.SampleReport()
	if err != nil {
		return nil, fmt.Errorf("session store unavailable and sample report unreadable: %w", err)
	}

	now := time.Now()
	return &models.SessionDocument{
		SessionID:  sessionID,
		Status:     string(models.JobStatusSuccess),
		Report:     report,
		Provenance: models.ProvenanceSample,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// SampleReport reads the bundled sample report text.
func (s *Service) SampleReport() (string, error) {
	data, err := os.ReadFile(s.sampleReportPath)
	if err != nil {
		return "", fmt.Errorf("failed to read sample report %s: %w", s.sampleReportPath, err)
	}
	return common.StripMarkdownFence(string(data)), nil
}

// RenderHTML converts report markdown to HTML.
func (s *Service) RenderHTML(report string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(report), &buf); err != nil {
		return "", fmt.Errorf("failed to render report markdown: %w", err)
	}
	return buf.String(), nil
}
