package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/common"
	"github.com/ternarybob/custos/internal/services/orchestrator"
)

// StatusHandler handles health, status and version HTTP requests
type StatusHandler struct {
	orchestrator *orchestrator.Service
	logger       arbor.ILogger
	startTime    time.Time
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(orch *orchestrator.Service, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		orchestrator: orch,
		logger:       logger,
		startTime:    time.Now(),
	}
}

// HealthHandler handles GET /api/health. The automation backend being down is
// reported as degraded, never as a handler failure.
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	backend, err := h.orchestrator.BackendHealth(r.Context())
	backendStatus := "unreachable"
	healthy := false
	if err == nil && backend != nil {
		backendStatus = backend.Status
		healthy = backend.Healthy
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, map[string]interface{}{
		"status":  status,
		"backend": backendStatus,
	})
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"service": "custos",
		"version": common.GetVersion(),
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}

// VersionHandler handles GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}
