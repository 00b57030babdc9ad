// Package app wires configuration, storage, services and handlers together.
package app

import (
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexiguard/internal/common"
	"github.com/ternarybob/lexiguard/internal/handlers"
	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/jobservice"
	"github.com/ternarybob/lexiguard/internal/services/chat"
	"github.com/ternarybob/lexiguard/internal/services/events"
	"github.com/ternarybob/lexiguard/internal/services/llm"
	"github.com/ternarybob/lexiguard/internal/services/reports"
	"github.com/ternarybob/lexiguard/internal/services/scheduler"
	"github.com/ternarybob/lexiguard/internal/storage/badger"
	"github.com/ternarybob/lexiguard/internal/tracking"
)

// App holds all application dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	StorageManager *badger.Manager

	// Services
	EventService *events.Service
	JobClient    *jobservice.Client
	Registry     *tracking.Registry
	LLMService   *llm.ClaudeService
	Reports      *reports.Service
	Chat         *chat.Service
	Scheduler    *scheduler.Service

	// Handlers
	AnalyzeHandler *handlers.AnalyzeHandler
	JobHandler     *handlers.JobHandler
	ReportHandler  *handlers.ReportHandler
	ChatHandler    *handlers.ChatHandler
	StatusHandler  *handlers.StatusHandler
	WSHandler      *handlers.WebSocketHandler
}

// New creates the application with all dependencies wired.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	a.EventService = events.NewService(logger)

	a.JobClient = jobservice.NewClient(
		config.JobService.APIKey,
		jobservice.WithBaseURL(config.JobService.BaseURL),
		jobservice.WithHTTPClient(&http.Client{Timeout: config.JobService.TimeoutDuration()}),
		jobservice.WithRateLimit(config.JobService.RateLimit),
		jobservice.WithLogger(logger),
	)

	a.Registry = tracking.NewRegistry(
		a.JobClient,
		a.EventService,
		storageManager.SessionStorage(),
		logger,
		tracking.Config{
			PollInterval:  config.Tracking.PollIntervalDuration(),
			TickInterval:  config.Tracking.TickIntervalDuration(),
			MaxWait:       config.Tracking.MaxWaitDuration(),
			FailurePolicy: tracking.FailurePolicy(config.Tracking.FailurePolicy),
			Estimator: tracking.EstimatorConfig{
				SimulatedCeiling:  config.Tracking.SimulatedCeiling,
				SimulatedFraction: config.Tracking.SimulatedFraction,
				AssumedDuration:   config.Tracking.AssumedDurationValue(),
			},
		},
	)

	llmService, err := llm.NewClaudeService(&config.Claude, storageManager.KeyValueStorage(), logger)
	if err != nil {
		// Chat degrades to the fallback responder without a provider key.
		logger.Warn().Err(err).Msg("LLM provider unavailable, chat will use fallback responses")
	}
	a.LLMService = llmService

	a.Reports = reports.NewService(storageManager.SessionStorage(), &config.Chat, logger)
	a.Chat = chat.NewService(llmOrNil(llmService), a.Reports, &config.Chat, logger)

	a.Scheduler = scheduler.NewService(a.Registry, storageManager.SessionStorage(), logger)

	a.AnalyzeHandler = handlers.NewAnalyzeHandler(a.JobClient, a.Registry, logger)
	a.JobHandler = handlers.NewJobHandler(a.JobClient, a.Registry, logger)
	a.ReportHandler = handlers.NewReportHandler(a.Reports, logger)
	a.ChatHandler = handlers.NewChatHandler(a.Chat, config.Chat.RateLimit, logger)
	a.StatusHandler = handlers.NewStatusHandler(a.Registry)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, logger)

	logger.Info().Msg("Application initialized")
	return a, nil
}

// llmOrNil keeps a failed provider out of the LLMService interface so the
// chat service sees a true nil instead of a typed nil pointer.
func llmOrNil(s *llm.ClaudeService) interfaces.LLMService {
	if s == nil {
		return nil
	}
	return s
}

// Start begins background services.
func (a *App) Start() error {
	return a.Scheduler.Start()
}

// Close shuts down background services and storage.
func (a *App) Close() error {
	a.Scheduler.Stop()
	a.Registry.Shutdown()

	if err := a.StorageManager.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}
