// Package chat implements the compliance chat proxy: context assembly from
// the analysis session, LLM completion, and a canned fallback responder.
package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexiguard/internal/common"
	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/models"
	"github.com/ternarybob/lexiguard/internal/services/reports"
)

const systemPromptTemplate = `You are an AI assistant specialized in legal compliance analysis for employment contracts.
You have access to the following information:
%s

Your task is to provide accurate, helpful responses to questions about the employment agreement
and its compliance issues. Focus on explaining legal concerns clearly and offering actionable
advice to address compliance problems.

Format your responses using Markdown to improve readability:
- Use **bold** for important points or headings
- Use bullet points for lists
- Use > for quotes or highlighting important sections
- Use headings (## or ###) to organize longer responses
- Use ` + "`code`" + ` formatting for section numbers or legal references

Be concise but thorough in your explanations.`

// Service implements the chat proxy.
type Service struct {
	llm     interfaces.LLMService
	reports *reports.Service
	cfg     *common.ChatConfig
	logger  arbor.ILogger
}

// NewService creates a chat service.
func NewService(llm interfaces.LLMService, reportService *reports.Service, cfg *common.ChatConfig, logger arbor.ILogger) *Service {
	return &Service{
		llm:     llm,
		reports: reportService,
		cfg:     cfg,
		logger:  logger,
	}
}

// Ask answers a question about an analysis session. LLM failures never reach
// the caller: the keyword fallback responder always produces an answer. The
// returned error is reserved for an unknown session.
func (s *Service) Ask(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	doc, err := s.reports.GetReport(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if s.llm == nil {
		return &models.ChatResponse{
			Response: FallbackResponse(req.Message),
			Fallback: true,
		}, nil
	}

	contextText := s.buildContext(doc)
	messages := s.buildMessages(req, contextText)

	response, err := s.llm.Complete(ctx, messages)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", req.SessionID).Msg("LLM completion failed, using fallback responder")
		return &models.ChatResponse{
			Response: FallbackResponse(req.Message),
			Fallback: true,
		}, nil
	}

	return &models.ChatResponse{
		Response: response,
		Model:    s.llm.Model(),
	}, nil
}

// buildContext concatenates the report, a bounded log summary, and the
// document text into the system context.
func (s *Service) buildContext(doc *models.SessionDocument) string {
	var b strings.Builder

	report := doc.Report
	if report == "" {
		// Fall back to the sample report so the assistant always has a report to discuss.
		if sample, err := s.reports.SampleReport(); err == nil {
			report = sample
		} else {
			s.logger.Warn().Err(err).Msg("Failed to read sample report for chat context")
		}
	}
	if report != "" {
		fmt.Fprintf(&b, "COMPLIANCE REPORT:\n%s\n\n", report)
	}

	// Full logs are never forwarded; the first lines bound token cost.
	if doc.LogFile != "" {
		fmt.Fprintf(&b, "ANALYSIS LOGS SUMMARY:\n%s\n\n", summarizeLog(doc.LogFile, s.cfg.LogSummaryLines))
	}

	b.WriteString(s.documentContext(doc.PDFPath))

	return b.String()
}

// documentContext resolves the document text by filename convention: a .txt
// sibling of the analyzed PDF under the configured text directory.
func (s *Service) documentContext(pdfPath string) string {
	fileName := filepath.Base(pdfPath)
	if fileName == "." || fileName == "/" || fileName == "" {
		fileName = s.cfg.DefaultDocument
	}

	textName := strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".txt"
	textPath := filepath.Join(s.cfg.DocumentTextDir, textName)

	data, err := os.ReadFile(textPath)
	if err != nil {
		s.logger.Debug().Str("path", textPath).Msg("No text version found for document, using fallback description")
		return fmt.Sprintf("DOCUMENT INFORMATION: The document is an employment agreement named %q\n\n", fileName)
	}
	return fmt.Sprintf("DOCUMENT CONTENT:\n%s\n\n", string(data))
}

// summarizeLog returns the first maxLines lines of the analysis log.
func summarizeLog(logContent string, maxLines int) string {
	lines := strings.Split(logContent, "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return strings.Join(lines, "\n") + "\n...(log truncated)"
}

// buildMessages assembles the provider message sequence. The canned initial
// assistant greeting is excluded from history so the model is not biased by
// its own boilerplate.
func (s *Service) buildMessages(req *models.ChatRequest, contextText string) []interfaces.Message {
	messages := []interfaces.Message{
		{Role: "system", Content: fmt.Sprintf(systemPromptTemplate, contextText)},
	}

	if len(req.History) > 1 {
		for _, msg := range req.History[1:] {
			switch msg.Role {
			case "user", "assistant", "system":
				messages = append(messages, interfaces.Message{Role: msg.Role, Content: msg.Content})
			}
		}
	}

	// Guarantee the current question is present when history did not carry it.
	hasUser := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUser = true
			break
		}
	}
	if !hasUser {
		messages = append(messages, interfaces.Message{Role: "user", Content: req.Message})
	}

	return messages
}
