package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/custos/internal/interfaces"
	"github.com/ternarybob/custos/internal/models"
	"github.com/ternarybob/custos/internal/services/orchestrator"
)

// SessionView is the API shape of a session record. Credential material is
// never returned over HTTP, only whether any is held.
type SessionView struct {
	ID             string               `json:"id"`
	OwnerID        string               `json:"owner_id"`
	Identity       string               `json:"identity"`
	Status         models.SessionStatus `json:"status"`
	HasCredentials bool                 `json:"has_credentials"`
	ErrorDetail    string               `json:"error_detail,omitempty"`
	UseCount       int64                `json:"use_count"`
	CreatedAt      time.Time            `json:"created_at"`
	LastUsedAt     time.Time            `json:"last_used_at"`
}

func toSessionView(record *models.SessionRecord) *SessionView {
	return &SessionView{
		ID:             record.ID,
		OwnerID:        record.OwnerID,
		Identity:       record.Identity,
		Status:         record.Status,
		HasCredentials: len(record.CredentialMaterial) > 0,
		ErrorDetail:    record.ErrorDetail,
		UseCount:       record.UseCount,
		CreatedAt:      record.CreatedAt,
		LastUsedAt:     record.LastUsedAt,
	}
}

// SessionHandler handles session query and removal HTTP requests
type SessionHandler struct {
	sessions     interfaces.SessionService
	orchestrator *orchestrator.Service
	logger       arbor.ILogger
	sweepMaxAge  time.Duration
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions interfaces.SessionService, orch *orchestrator.Service, sweepMaxAge time.Duration, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		orchestrator: orch,
		logger:       logger,
		sweepMaxAge:  sweepMaxAge,
	}
}

// ListSessionsHandler handles GET /api/sessions
func (h *SessionHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	query := models.SessionQuery{
		OwnerID:  r.URL.Query().Get("owner"),
		Identity: r.URL.Query().Get("identity"),
	}

	if status := r.URL.Query().Get("status"); status != "" {
		parsed := models.SessionStatus(status)
		if !parsed.IsValid() {
			WriteError(w, http.StatusBadRequest, "Invalid status filter: "+status)
			return
		}
		query.Status = parsed
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "Invalid limit: "+limit)
			return
		}
		query.Limit = n
	}

	records, err := h.sessions.Search(r.Context(), query)
	if err != nil {
		h.logger.Error().Err(err).Msg("Session search failed")
		WriteServiceError(w, err)
		return
	}

	views := make([]*SessionView, 0, len(records))
	for _, record := range records {
		views = append(views, toSessionView(record))
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": views,
		"count":    len(views),
	})
}

// SessionHandler routes GET and DELETE on /api/sessions/{id}
func (h *SessionHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	switch r.Method {
	case "GET":
		record, err := h.sessions.Get(r.Context(), id)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, toSessionView(record))
	case "DELETE":
		if err := h.sessions.Remove(r.Context(), id); err != nil {
			WriteServiceError(w, err)
			return
		}
		h.logger.Info().Str("session_id", id).Msg("Session removed")
		WriteSuccess(w, "Session removed")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ExpireSessionsHandler handles POST /api/sessions/expire
func (h *SessionHandler) ExpireSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	count, err := h.orchestrator.ExpireInactive(r.Context(), h.sweepMaxAge)
	if err != nil {
		h.logger.Error().Err(err).Msg("Manual expiry sweep failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"expired": count,
	})
}
