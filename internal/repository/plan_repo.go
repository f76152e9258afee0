package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindsphere-backend/internal/models"
)

type PlanRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

// CreateWithSessions stores the plan and all of its sessions in one
// transaction. IDs are assigned here.
func (r *PlanRepo) CreateWithSessions(ctx context.Context, plan *models.StudyPlan) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	plan.ID = uuid.New()
	err = tx.QueryRow(ctx, `
		INSERT INTO study_plans (id, user_id, topic, difficulty, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		plan.ID, plan.UserID, plan.Topic, plan.Difficulty, plan.StartDate, plan.EndDate,
	).Scan(&plan.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range plan.Sessions {
		s := &plan.Sessions[i]
		s.ID = uuid.New()
		s.PlanID = plan.ID
		batch.Queue(`
			INSERT INTO study_sessions (id, plan_id, day_offset, date, topic, is_completed)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			s.ID, s.PlanID, s.DayOffset, s.Date, s.Topic, s.IsCompleted,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range plan.Sessions {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert sessions: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const planColumns = `id, user_id, topic, difficulty, start_date, end_date, created_at`

func scanPlan(row pgx.Row) (*models.StudyPlan, error) {
	p := &models.StudyPlan{}
	if err := row.Scan(&p.ID, &p.UserID, &p.Topic, &p.Difficulty, &p.StartDate, &p.EndDate, &p.CreatedAt); err != nil {
		return nil, mapDBError(err)
	}
	return p, nil
}

func (r *PlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudyPlan, error) {
	return scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM study_plans WHERE id = $1`, id))
}

func (r *PlanRepo) GetLatestByUser(ctx context.Context, userID uuid.UUID) (*models.StudyPlan, error) {
	return scanPlan(r.pool.QueryRow(ctx,
		`SELECT `+planColumns+` FROM study_plans WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		userID,
	))
}

// ListSessions returns every session of the plan with its content, by day.
func (r *PlanRepo) ListSessions(ctx context.Context, planID uuid.UUID) ([]models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.plan_id, s.day_offset, s.date, s.topic, s.is_completed, s.content_id,
			c.title, c.url, c.source, c.type, c.duration_seconds, c.thumbnail
		FROM study_sessions s
		LEFT JOIN content c ON c.id = s.content_id
		WHERE s.plan_id = $1
		ORDER BY s.day_offset`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.StudySession
	for rows.Next() {
		var s models.StudySession
		var title, url, source, typ, thumbnail *string
		var duration *int
		if err := rows.Scan(
			&s.ID, &s.PlanID, &s.DayOffset, &s.Date, &s.Topic, &s.IsCompleted, &s.ContentID,
			&title, &url, &source, &typ, &duration, &thumbnail,
		); err != nil {
			return nil, err
		}
		if s.ContentID != nil && title != nil {
			s.Content = &models.Content{
				ID:              *s.ContentID,
				Title:           *title,
				URL:             deref(url),
				Source:          deref(source),
				Type:            deref(typ),
				DurationSeconds: derefInt(duration),
				Thumbnail:       thumbnail,
			}
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListUnhydratedSessions returns the sessions still waiting for content,
// ordered by day offset.
func (r *PlanRepo) ListUnhydratedSessions(ctx context.Context, planID uuid.UUID) ([]models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, plan_id, day_offset, date, topic, is_completed, content_id
		FROM study_sessions
		WHERE plan_id = $1 AND content_id IS NULL
		ORDER BY day_offset`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.StudySession
	for rows.Next() {
		var s models.StudySession
		if err := rows.Scan(&s.ID, &s.PlanID, &s.DayOffset, &s.Date, &s.Topic, &s.IsCompleted, &s.ContentID); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// AssignContent sets the session's content only if none is assigned yet.
// It reports whether this call claimed the slot.
func (r *PlanRepo) AssignContent(ctx context.Context, sessionID, contentID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE study_sessions SET content_id = $2 WHERE id = $1 AND content_id IS NULL`,
		sessionID, contentID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
