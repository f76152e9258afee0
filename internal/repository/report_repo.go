package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindsphere-backend/internal/models"
)

type ReportRepo struct {
	pool *pgxpool.Pool
}

func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

// Upsert writes the report for (user, week), replacing any earlier version.
func (r *ReportRepo) Upsert(ctx context.Context, report *models.WeeklyReport) error {
	chart, err := json.Marshal(report.ChartData)
	if err != nil {
		return fmt.Errorf("failed to encode chart data: %w", err)
	}

	query := `
		INSERT INTO weekly_reports (id, user_id, week_start_date, total_sessions, total_productive_mins, score, chart_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, week_start_date) DO UPDATE SET
			total_sessions = EXCLUDED.total_sessions,
			total_productive_mins = EXCLUDED.total_productive_mins,
			score = EXCLUDED.score,
			chart_data = EXCLUDED.chart_data,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		uuid.New(), report.UserID, report.WeekStartDate, report.TotalSessions,
		report.TotalProductiveMins, report.Score, chart,
	).Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt)
}

func (r *ReportRepo) GetLatestByUser(ctx context.Context, userID uuid.UUID) (*models.WeeklyReport, error) {
	report := &models.WeeklyReport{}
	var chart []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, week_start_date, total_sessions, total_productive_mins, score, chart_data, created_at, updated_at
		FROM weekly_reports
		WHERE user_id = $1
		ORDER BY week_start_date DESC
		LIMIT 1`, userID,
	).Scan(
		&report.ID, &report.UserID, &report.WeekStartDate, &report.TotalSessions,
		&report.TotalProductiveMins, &report.Score, &chart, &report.CreatedAt, &report.UpdatedAt,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := json.Unmarshal(chart, &report.ChartData); err != nil {
		return nil, fmt.Errorf("failed to decode chart data: %w", err)
	}
	return report, nil
}
