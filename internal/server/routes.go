package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Authentication
	mux.HandleFunc("/api/auth", s.app.AuthHandler.AuthenticateHandler) // POST - start or reuse

	// API routes - Tasks
	mux.HandleFunc("/api/tasks/", s.app.TaskHandler.TaskHandler) // GET /{id}, POST /{id}/complete

	// API routes - Sessions
	mux.HandleFunc("/api/sessions", s.app.SessionHandler.ListSessionsHandler)
	mux.HandleFunc("/api/sessions/expire", s.app.SessionHandler.ExpireSessionsHandler)
	mux.HandleFunc("/api/sessions/", s.app.SessionHandler.SessionHandler) // GET/DELETE /{id}

	// API routes - Status
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)

	return mux
}
