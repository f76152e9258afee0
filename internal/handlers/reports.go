package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/services"
)

type reportService interface {
	GetLatest(ctx context.Context, userID uuid.UUID) (*models.WeeklyReport, error)
	RequestReport(ctx context.Context, userID uuid.UUID, weekStart *time.Time) (time.Time, error)
}

type ReportHandler struct {
	reports reportService
}

func NewReportHandler(reports *services.ReportAggregator) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func (h *ReportHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	report, err := h.reports.GetLatest(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if report == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No reports generated yet", r))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.GenerateReportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var weekStart *time.Time
	if strings.TrimSpace(req.WeekStartDate) != "" {
		t, err := parseDate(req.WeekStartDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"week_start_date": "Week start date must be RFC 3339 or YYYY-MM-DD"}, r))
			return
		}
		weekStart = &t
	}

	start, err := h.reports.RequestReport(r.Context(), userID, weekStart)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":         "Report generation queued",
		"week_start_date": start.Format(time.DateOnly),
	})
}
