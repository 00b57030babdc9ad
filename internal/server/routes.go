package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (tracking progress push)
	mux.HandleFunc("/ws", s.app.WSHandler.Handle)

	// API routes - Analysis
	mux.HandleFunc("/api/analyze", s.app.AnalyzeHandler.Analyze)         // POST - submit document and start tracking
	mux.HandleFunc("/api/job-status/", s.app.JobHandler.HandleJobStatus) // GET/DELETE /{id}

	// API routes - Reports
	mux.HandleFunc("/api/report/", s.app.ReportHandler.GetReport) // GET /{id}

	// API routes - Chat
	mux.HandleFunc("/api/chat", s.app.ChatHandler.Chat)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.StatusHandler.Version)
	mux.HandleFunc("/api/health", s.app.StatusHandler.Health)

	return mux
}
