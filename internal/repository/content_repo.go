package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindsphere-backend/internal/models"
)

type ContentRepo struct {
	pool *pgxpool.Pool
}

func NewContentRepo(pool *pgxpool.Pool) *ContentRepo {
	return &ContentRepo{pool: pool}
}

const contentColumns = `c.id, c.title, c.description, c.url, c.source, c.type, c.duration_seconds,
	c.thumbnail, c.external_id, c.difficulty, c.created_at,
	COALESCE((SELECT array_agg(t.name ORDER BY t.name) FROM content_tags ct JOIN tags t ON t.id = ct.tag_id WHERE ct.content_id = c.id), '{}')`

func scanContent(row pgx.Row) (*models.Content, error) {
	c := &models.Content{}
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.URL, &c.Source, &c.Type, &c.DurationSeconds,
		&c.Thumbnail, &c.ExternalID, &c.Difficulty, &c.CreatedAt, &c.Tags,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func collectContent(rows pgx.Rows) ([]models.Content, error) {
	defer rows.Close()
	var items []models.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

func (r *ContentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Content, error) {
	c, err := scanContent(r.pool.QueryRow(ctx, `SELECT `+contentColumns+` FROM content c WHERE c.id = $1`, id))
	if err != nil {
		return nil, mapDBError(err)
	}
	return c, nil
}

func (r *ContentRepo) GetByExternalID(ctx context.Context, externalID string) (*models.Content, error) {
	c, err := scanContent(r.pool.QueryRow(ctx, `SELECT `+contentColumns+` FROM content c WHERE c.external_id = $1`, externalID))
	if err != nil {
		return nil, mapDBError(err)
	}
	return c, nil
}

// SearchByTopic matches the topic case-insensitively against titles and tag
// names, oldest items first.
func (r *ContentRepo) SearchByTopic(ctx context.Context, topic string, limit int) ([]models.Content, error) {
	query := `SELECT ` + contentColumns + `
		FROM content c
		WHERE c.title ILIKE $1
		   OR EXISTS (
			SELECT 1 FROM content_tags ct JOIN tags t ON t.id = ct.tag_id
			WHERE ct.content_id = c.id AND t.name ILIKE $1
		   )
		ORDER BY c.created_at, c.id
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, containsPattern(topic), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search content: %w", err)
	}
	return collectContent(rows)
}

// CreateWithTag stores an external item and links it to the tag, creating the
// tag when needed. If another writer stored the same external id first, the
// existing row is returned.
func (r *ContentRepo) CreateWithTag(ctx context.Context, c *models.Content, tag string) (*models.Content, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	c.ID = uuid.New()
	err = tx.QueryRow(ctx, `
		INSERT INTO content (id, title, description, url, source, type, duration_seconds, thumbnail, external_id, difficulty)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING created_at`,
		c.ID, c.Title, c.Description, c.URL, c.Source, c.Type, c.DurationSeconds,
		c.Thumbnail, c.ExternalID, c.Difficulty,
	).Scan(&c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) && c.ExternalID != nil {
		tx.Rollback(ctx)
		return r.GetByExternalID(ctx, *c.ExternalID)
	}
	if err != nil {
		return nil, mapDBError(err)
	}

	var tagID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO tags (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, tag).Scan(&tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert tag: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO content_tags (content_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		c.ID, tagID,
	); err != nil {
		return nil, fmt.Errorf("failed to tag content: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	c.Tags = []string{tag}
	return c, nil
}

func (r *ContentRepo) List(ctx context.Context, limit, offset int) ([]models.Content, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM content").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+contentColumns+` FROM content c ORDER BY c.created_at DESC, c.id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectContent(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByTags returns items carrying any of the tags (case-insensitive).
func (r *ContentRepo) ListByTags(ctx context.Context, tags []string, limit int) ([]models.Content, error) {
	lowered := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	if len(lowered) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+contentColumns+`
		FROM content c
		WHERE EXISTS (
			SELECT 1 FROM content_tags ct JOIN tags t ON t.id = ct.tag_id
			WHERE ct.content_id = c.id AND lower(t.name) = ANY($1)
		)
		ORDER BY c.created_at DESC
		LIMIT $2`, lowered, limit)
	if err != nil {
		return nil, err
	}
	return collectContent(rows)
}

func (r *ContentRepo) ListExcluding(ctx context.Context, exclude []uuid.UUID, limit int) ([]models.Content, error) {
	if exclude == nil {
		exclude = []uuid.UUID{}
	}
	rows, err := r.pool.Query(ctx, `SELECT `+contentColumns+`
		FROM content c
		WHERE NOT (c.id = ANY($1))
		ORDER BY c.created_at DESC
		LIMIT $2`, exclude, limit)
	if err != nil {
		return nil, err
	}
	return collectContent(rows)
}
