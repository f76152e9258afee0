package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindsphere-backend/internal/models"
)

type PushSubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewPushSubscriptionRepo(pool *pgxpool.Pool) *PushSubscriptionRepo {
	return &PushSubscriptionRepo{pool: pool}
}

// Upsert keys subscriptions by endpoint; a browser re-subscribing moves the
// endpoint to the current user and refreshes its keys.
func (r *PushSubscriptionRepo) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth
		RETURNING id, created_at`,
		uuid.New(), sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth,
	).Scan(&sub.ID, &sub.CreatedAt)
}

func (r *PushSubscriptionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PushSubscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var s models.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *PushSubscriptionRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM push_subscriptions WHERE id = $1", id)
	return err
}

// DeleteForUser removes the user's subscription for endpoint and reports
// whether one existed.
func (r *PushSubscriptionRepo) DeleteForUser(ctx context.Context, userID uuid.UUID, endpoint string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2",
		userID, endpoint,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
