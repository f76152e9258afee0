package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/services"
)

type profileService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, req models.UpdatePreferencesRequest) (*models.Preferences, error)
}

type ProfileHandler struct {
	profiles profileService
}

func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.UpdatePreferencesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	prefs, err := h.profiles.UpdatePreferences(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
