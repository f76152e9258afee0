package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/services"
)

var errBadDate = errors.New("date must be RFC 3339 or YYYY-MM-DD")

type planService interface {
	GeneratePlan(ctx context.Context, p services.GeneratePlanParams) (*models.StudyPlan, error)
	GetPlan(ctx context.Context, userID uuid.UUID) (*models.StudyPlan, error)
	RequestHydration(ctx context.Context, userID, planID uuid.UUID) error
}

type ScheduleHandler struct {
	plans planService
	now   func() time.Time
}

func NewScheduleHandler(plans *services.PlanService) *ScheduleHandler {
	return &ScheduleHandler{plans: plans, now: time.Now}
}

// parseDate accepts a full RFC 3339 timestamp or a bare calendar date, which
// is read as midnight UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, errBadDate
}

func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.GeneratePlanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	params := services.GeneratePlanParams{
		UserID:     userID,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		StartDate:  h.now(),
	}
	fields := make(map[string]string)
	if strings.TrimSpace(req.StartDate) != "" {
		start, err := parseDate(req.StartDate)
		if err != nil {
			fields["start_date"] = "Start date must be RFC 3339 or YYYY-MM-DD"
		}
		params.StartDate = start
	}
	if strings.TrimSpace(req.EndDate) != "" {
		end, err := parseDate(req.EndDate)
		if err != nil {
			fields["end_date"] = "End date must be RFC 3339 or YYYY-MM-DD"
		}
		params.EndDate = end
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	plan, err := h.plans.GeneratePlan(r.Context(), params)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	plan, err := h.plans.GetPlan(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if plan == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No active study plan found", r))
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *ScheduleHandler) Hydrate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	planID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.plans.RequestHydration(r.Context(), userID, planID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Hydration queued",
		"plan_id": planID,
	})
}
