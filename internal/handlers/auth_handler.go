package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/services/orchestrator"
)

// AuthRequest is the body for POST /api/auth
type AuthRequest struct {
	OwnerID  string `json:"owner_id" validate:"required"`
	Identity string `json:"identity" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	orchestrator *orchestrator.Service
	validate     *validator.Validate
	logger       arbor.ILogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(orch *orchestrator.Service, logger arbor.ILogger) *AuthHandler {
	return &AuthHandler{
		orchestrator: orch,
		validate:     validator.New(),
		logger:       logger,
	}
}

// AuthenticateHandler handles POST /api/auth
func (h *AuthHandler) AuthenticateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse auth request")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.orchestrator.Authenticate(r.Context(), req.OwnerID, req.Identity, req.Password)
	if err != nil {
		h.logger.Error().Err(err).Str("owner_id", req.OwnerID).Msg("Authentication failed to start")
		WriteServiceError(w, err)
		return
	}

	if outcome.ReusedSession {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"reused_session": true,
			"session_id":     outcome.SessionID,
		})
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"reused_session": false,
		"task_id":        outcome.TaskID,
	})
}
