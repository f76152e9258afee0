package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/repository"
)

// scoreTargetMins is the weekly learning time worth a score of 100.
const scoreTargetMins = 150

var weekdayLabels = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type ReportStore interface {
	Upsert(ctx context.Context, report *models.WeeklyReport) error
	GetLatestByUser(ctx context.Context, userID uuid.UUID) (*models.WeeklyReport, error)
}

type SessionHistory interface {
	ListCompletedInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.CompletedSession, error)
	ListActiveUsers(ctx context.Context, from, to time.Time) ([]uuid.UUID, error)
}

type ReportAggregator struct {
	reports  ReportStore
	sessions SessionHistory
	queue    JobEnqueuer
	loc      *time.Location
	now      func() time.Time
	log      *logger.Logger
}

func NewReportAggregator(reports ReportStore, sessions SessionHistory, queue JobEnqueuer, loc *time.Location, log *logger.Logger) *ReportAggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportAggregator{
		reports:  reports,
		sessions: sessions,
		queue:    queue,
		loc:      loc,
		now:      time.Now,
		log:      log,
	}
}

// BuildWeeklyReport aggregates completed sessions into a report for the week
// starting at weekStart. Sessions starting outside the week still count
// towards the totals but are left out of the daily chart.
func BuildWeeklyReport(userID uuid.UUID, weekStart time.Time, sessions []models.CompletedSession) *models.WeeklyReport {
	totalSeconds := 0
	for _, s := range sessions {
		totalSeconds += s.DurationSeconds
	}
	mins := int(math.Round(float64(totalSeconds) / 60))
	score := int(math.Round(float64(mins) / scoreTargetMins * 100))
	if score > 100 {
		score = 100
	}

	chart := make([]models.DailyStat, 7)
	for i := range chart {
		d := weekStart.AddDate(0, 0, i)
		chart[i] = models.DailyStat{
			Day:  weekdayLabels[d.Weekday()],
			Date: d.Format("2006-01-02"),
		}
	}
	for _, s := range sessions {
		if s.StartTime.Before(weekStart) {
			continue
		}
		idx := int(s.StartTime.Sub(weekStart) / day)
		if idx >= len(chart) {
			continue
		}
		chart[idx].Minutes += int(math.Round(float64(s.DurationSeconds) / 60))
	}

	return &models.WeeklyReport{
		UserID:              userID,
		WeekStartDate:       weekStart,
		TotalSessions:       len(sessions),
		TotalProductiveMins: mins,
		Score:               score,
		ChartData:           chart,
	}
}

// Generate computes and stores the report for [weekStart, weekStart+7d) and
// enqueues a summary notification. Running it twice for the same week
// replaces the stored report.
func (a *ReportAggregator) Generate(ctx context.Context, p models.WeeklyReportPayload) (*models.WeeklyReport, error) {
	weekStart := p.WeekStartDate
	weekEnd := weekStart.AddDate(0, 0, 7)

	sessions, err := a.sessions.ListCompletedInRange(ctx, p.UserID, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	report := BuildWeeklyReport(p.UserID, weekStart, sessions)
	if err := a.reports.Upsert(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	a.log.Info("weekly report generated",
		"user_id", p.UserID,
		"week_start", weekStart.Format("2006-01-02"),
		"sessions", report.TotalSessions,
		"score", report.Score,
	)

	err = a.queue.Enqueue(ctx, models.NotificationPayload{
		UserID: p.UserID,
		Title:  "Your Weekly Insight 🧠",
		Body:   fmt.Sprintf("You saved %d mins from doomscrolling this week! Score: %d/100", report.TotalProductiveMins, report.Score),
		URL:    "/analytics",
	})
	if err != nil {
		a.log.Error("failed to enqueue weekly report notification", "user_id", p.UserID, "error", err)
	}
	return report, nil
}

// GetLatest returns the report with the latest week start, or nil.
func (a *ReportAggregator) GetLatest(ctx context.Context, userID uuid.UUID) (*models.WeeklyReport, error) {
	report, err := a.reports.GetLatestByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return report, err
}

// StartOfWeek returns midnight of the Monday on or before t, in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// RequestReport enqueues report generation for the given week, defaulting to
// the current week.
func (a *ReportAggregator) RequestReport(ctx context.Context, userID uuid.UUID, weekStart *time.Time) (time.Time, error) {
	start := StartOfWeek(a.now(), a.loc)
	if weekStart != nil {
		if weekStart.After(a.now()) {
			return time.Time{}, &ValidationError{Fields: map[string]string{
				"week_start_date": "Week start date cannot be in the future",
			}}
		}
		start = *weekStart
	}

	if err := a.queue.Enqueue(ctx, models.WeeklyReportPayload{UserID: userID, WeekStartDate: start}); err != nil {
		return time.Time{}, err
	}
	return start, nil
}

// EnqueuePreviousWeek enqueues one report job per user with completed
// sessions in the week before now. It returns the number of jobs enqueued.
func (a *ReportAggregator) EnqueuePreviousWeek(ctx context.Context) (int, error) {
	weekStart := StartOfWeek(a.now(), a.loc).AddDate(0, 0, -7)
	users, err := a.sessions.ListActiveUsers(ctx, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return 0, fmt.Errorf("failed to list active users: %w", err)
	}

	enqueued := 0
	for _, userID := range users {
		err := a.queue.Enqueue(ctx, models.WeeklyReportPayload{UserID: userID, WeekStartDate: weekStart})
		if err != nil {
			a.log.Error("failed to enqueue weekly report", "user_id", userID, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
