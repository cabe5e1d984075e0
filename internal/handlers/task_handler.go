package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/services/orchestrator"
)

// CompleteTaskRequest is the body for POST /api/tasks/{id}/complete
type CompleteTaskRequest struct {
	OwnerID            string `json:"owner_id" validate:"required"`
	Identity           string `json:"identity" validate:"required"`
	CredentialMaterial []byte `json:"credential_material" validate:"required"`
}

// TaskHandler handles task status and completion HTTP requests
type TaskHandler struct {
	orchestrator *orchestrator.Service
	validate     *validator.Validate
	logger       arbor.ILogger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(orch *orchestrator.Service, logger arbor.ILogger) *TaskHandler {
	return &TaskHandler{
		orchestrator: orch,
		validate:     validator.New(),
		logger:       logger,
	}
}

// TaskHandler routes /api/tasks/{id} and /api/tasks/{id}/complete
func (h *TaskHandler) TaskHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if rest == "" || rest == r.URL.Path {
		WriteError(w, http.StatusBadRequest, "Task ID required")
		return
	}

	if taskID, ok := strings.CutSuffix(rest, "/complete"); ok {
		h.completeTask(w, r, strings.Trim(taskID, "/"))
		return
	}

	h.getTaskStatus(w, r, rest)
}

// getTaskStatus handles GET /api/tasks/{id}
func (h *TaskHandler) getTaskStatus(w http.ResponseWriter, r *http.Request, taskID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status, err := h.orchestrator.GetStatus(r.Context(), taskID)
	if err != nil {
		h.logger.Warn().Err(err).Str("task_id", taskID).Msg("Failed to get task status")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// completeTask handles POST /api/tasks/{id}/complete
func (h *TaskHandler) completeTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req CompleteTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.orchestrator.ResolveTaskCompletion(r.Context(), taskID, req.OwnerID, req.Identity, req.CredentialMaterial)
	if err != nil {
		h.logger.Error().Err(err).Str("task_id", taskID).Msg("Failed to resolve task completion")
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("task_id", taskID).
		Str("session_id", record.ID).
		Msg("Task completion resolved into session")

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": record.ID,
		"status":     record.Status,
	})
}
