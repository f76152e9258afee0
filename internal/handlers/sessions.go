package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/services"
)

type sessionService interface {
	Start(ctx context.Context, userID, contentID uuid.UUID) (*models.LearningSession, error)
	End(ctx context.Context, userID, sessionID uuid.UUID) (*models.EndSessionResult, error)
	LogEvents(ctx context.Context, userID, sessionID uuid.UUID, events []models.InteractionEvent) (int, error)
}

type SessionHandler struct {
	sessions sessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.StartSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.sessions.Start(r.Context(), userID, req.ContentID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.EndSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"session_id": "Session ID is required"}, r))
		return
	}

	result, err := h.sessions.End(r.Context(), userID, req.SessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) LogEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.LogEventsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"session_id": "Session ID is required"}, r))
		return
	}

	count, err := h.sessions.LogEvents(r.Context(), userID, req.SessionID, req.Events)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": count})
}
