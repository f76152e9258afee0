package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/services"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type catalogService interface {
	ListContent(ctx context.Context, limit, offset int) (*models.ContentPage, error)
	Recommend(ctx context.Context, userID uuid.UUID) ([]models.Recommendation, error)
}

type ContentHandler struct {
	catalog catalogService
}

func NewContentHandler(catalog *services.RecommendationService) *ContentHandler {
	return &ContentHandler{catalog: catalog}
}

func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, fields := pageParams(r)
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	page, err := h.catalog.ListContent(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ContentHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	recs, err := h.catalog.Recommend(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recommendations": recs})
}

// pageParams reads limit and offset query parameters. Oversized limits are
// clamped; malformed or negative values are reported per field.
func pageParams(r *http.Request) (int, int, map[string]string) {
	fields := make(map[string]string)
	limit, offset := defaultPageSize, 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields["limit"] = "Limit must be a positive integer"
		} else {
			limit = min(n, maxPageSize)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields["offset"] = "Offset must be zero or a positive integer"
		} else {
			offset = n
		}
	}
	return limit, offset, fields
}
