package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindsphere-backend/internal/models"
)

type LearningSessionRepo struct {
	pool *pgxpool.Pool
}

func NewLearningSessionRepo(pool *pgxpool.Pool) *LearningSessionRepo {
	return &LearningSessionRepo{pool: pool}
}

func (r *LearningSessionRepo) Create(ctx context.Context, s *models.LearningSession) error {
	s.ID = uuid.New()
	query := `
		INSERT INTO learning_sessions (id, user_id, content_id, start_time)
		VALUES ($1, $2, $3, $4)
		RETURNING is_completed`

	return mapDBError(r.pool.QueryRow(ctx, query, s.ID, s.UserID, s.ContentID, s.StartTime).Scan(&s.IsCompleted))
}

const learningSessionColumns = `id, user_id, content_id, start_time, end_time, duration_seconds, is_completed`

func scanLearningSession(row pgx.Row) (*models.LearningSession, error) {
	s := &models.LearningSession{}
	err := row.Scan(&s.ID, &s.UserID, &s.ContentID, &s.StartTime, &s.EndTime, &s.DurationSeconds, &s.IsCompleted)
	if err != nil {
		return nil, mapDBError(err)
	}
	return s, nil
}

func (r *LearningSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.LearningSession, error) {
	return scanLearningSession(r.pool.QueryRow(ctx,
		`SELECT `+learningSessionColumns+` FROM learning_sessions WHERE id = $1`, id))
}

// EndWithReward closes an open session and applies reward to the owner's
// progress in one transaction. reward maps the session duration and the
// locked progress to the XP earned and the progress to store. A session
// that already ended yields ErrNotFound and nothing is written.
func (r *LearningSessionRepo) EndWithReward(
	ctx context.Context,
	sessionID, userID uuid.UUID,
	endTime time.Time,
	source string,
	reward func(durationSeconds int, p models.Progress) (int, models.Progress),
) (*models.EndSessionResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	session, err := scanLearningSession(tx.QueryRow(ctx, `
		UPDATE learning_sessions
		SET end_time = $3,
			duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($3 - start_time))::INT),
			is_completed = TRUE
		WHERE id = $1
		  AND user_id = $2
		  AND end_time IS NULL
		RETURNING `+learningSessionColumns,
		sessionID, userID, endTime,
	))
	if err != nil {
		return nil, err
	}

	var p models.Progress
	err = tx.QueryRow(ctx,
		`SELECT current_xp, level, current_streak, last_activity FROM users WHERE id = $1 FOR UPDATE`,
		userID,
	).Scan(&p.XP, &p.Level, &p.Streak, &p.LastActivity)
	if err != nil {
		return nil, mapDBError(err)
	}

	duration := 0
	if session.DurationSeconds != nil {
		duration = *session.DurationSeconds
	}
	earned, next := reward(duration, p)

	if earned > 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO xp_transactions (id, user_id, session_id, amount, source) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), userID, sessionID, earned, source,
		); err != nil {
			return nil, fmt.Errorf("failed to record xp transaction: %w", mapDBError(err))
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET current_xp = $2, level = $3, current_streak = $4, last_activity = $5 WHERE id = $1`,
		userID, next.XP, next.Level, next.Streak, next.LastActivity,
	); err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &models.EndSessionResult{Session: session, XPAwarded: earned, Streak: next.Streak}, nil
}

// ListCompletedInRange returns completed sessions whose start time falls in
// [from, to).
func (r *LearningSessionRepo) ListCompletedInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.CompletedSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, COALESCE(duration_seconds, 0)
		FROM learning_sessions
		WHERE user_id = $1
		  AND is_completed
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.CompletedSession
	for rows.Next() {
		var s models.CompletedSession
		if err := rows.Scan(&s.StartTime, &s.DurationSeconds); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListActiveUsers returns users with at least one completed session starting
// in [from, to).
func (r *LearningSessionRepo) ListActiveUsers(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT user_id
		FROM learning_sessions
		WHERE is_completed AND start_time >= $1 AND start_time < $2`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertEvents bulk-inserts events, skipping IDs that already exist. It
// returns the number of new rows.
func (r *LearningSessionRepo) InsertEvents(ctx context.Context, events []models.InteractionEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		meta := e.Metadata
		if len(meta) == 0 {
			meta = json.RawMessage("{}")
		}
		batch.Queue(`
			INSERT INTO interaction_events (id, session_id, user_id, type, timestamp, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, e.SessionID, e.UserID, e.Type, e.Timestamp, []byte(meta),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range events {
		tag, err := br.Exec()
		if err != nil {
			return inserted, mapDBError(err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
