package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindsphere-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING current_xp, level, current_streak, created_at`

	user.ID = uuid.New()
	if user.Role == "" {
		user.Role = "LEARNER"
	}

	err := r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FullName, user.Role,
	).Scan(&user.CurrentXP, &user.Level, &user.CurrentStreak, &user.CreatedAt)
	return mapDBError(err)
}

const userColumns = `id, email, password_hash, full_name, role, current_xp, level, current_streak, last_activity, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role,
		&u.CurrentXP, &u.Level, &u.CurrentStreak, &u.LastActivity, &u.CreatedAt,
	)
	if err != nil {
		return nil, mapDBError(err)
	}
	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// ApplyXP records a ledger entry and adds amount to the user's XP in one
// transaction. levelUp maps the raw (xp, level) to the stored pair.
func (r *UserRepo) ApplyXP(ctx context.Context, userID uuid.UUID, amount int, source string, levelUp func(xp, level int) (int, int)) (*models.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var xp, level int
	err = tx.QueryRow(ctx, `SELECT current_xp, level FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&xp, &level)
	if err != nil {
		return nil, mapDBError(err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO xp_transactions (id, user_id, amount, source) VALUES ($1, $2, $3, $4)`,
		uuid.New(), userID, amount, source,
	); err != nil {
		return nil, fmt.Errorf("failed to record xp transaction: %w", err)
	}

	newXP, newLevel := levelUp(xp+amount, level)
	user, err := scanUser(tx.QueryRow(ctx,
		`UPDATE users SET current_xp = $2, level = $3 WHERE id = $1 RETURNING `+userColumns,
		userID, newXP, newLevel,
	))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateStreak locks the user row, computes the next streak from the stored
// last activity and saves it along with now as the new last activity.
func (r *UserRepo) UpdateStreak(ctx context.Context, userID uuid.UUID, now time.Time, next func(last *time.Time, streak int, now time.Time) int) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var (
		last   *time.Time
		streak int
	)
	err = tx.QueryRow(ctx, `SELECT last_activity, current_streak FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&last, &streak)
	if err != nil {
		return 0, mapDBError(err)
	}

	newStreak := next(last, streak, now)
	if _, err := tx.Exec(ctx,
		`UPDATE users SET current_streak = $2, last_activity = $3 WHERE id = $1`,
		userID, newStreak, now,
	); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newStreak, nil
}

func (r *UserRepo) GetPreferences(ctx context.Context, userID uuid.UUID) (*models.Preferences, error) {
	p := &models.Preferences{}
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, topics, daily_goal_mins, quiet_hours_start, quiet_hours_end, updated_at
		FROM preferences WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Topics, &p.DailyGoalMins, &p.QuietHoursStart, &p.QuietHoursEnd, &p.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return p, nil
}

func (r *UserRepo) UpsertPreferences(ctx context.Context, p *models.Preferences) error {
	if p.Topics == nil {
		p.Topics = []string{}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO preferences (user_id, topics, daily_goal_mins, quiet_hours_start, quiet_hours_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			topics = EXCLUDED.topics,
			daily_goal_mins = EXCLUDED.daily_goal_mins,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			updated_at = NOW()
		RETURNING updated_at`,
		p.UserID, p.Topics, p.DailyGoalMins, p.QuietHoursStart, p.QuietHoursEnd,
	).Scan(&p.UpdatedAt)
}
