package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/metrics"
	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/repository"
)

// defaultContentDurationSeconds is stored for external items whose duration
// is unknown.
const defaultContentDurationSeconds = 600

type ContentStore interface {
	SearchByTopic(ctx context.Context, topic string, limit int) ([]models.Content, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Content, error)
	CreateWithTag(ctx context.Context, c *models.Content, tag string) (*models.Content, error)
}

// ContentResolver answers "give me up to N items for this topic", preferring
// the local catalog and topping up from an external provider.
type ContentResolver struct {
	store    ContentStore
	provider ContentProvider
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewContentResolver uses provider as given. Callers that want provider
// failures to degrade to synthesized items pass a FallbackProvider.
func NewContentResolver(store ContentStore, provider ContentProvider, log *logger.Logger) *ContentResolver {
	return &ContentResolver{
		store:    store,
		provider: provider,
		log:      log,
		metrics:  metrics.Get(),
	}
}

// Resolve returns local matches followed by external items, at most limit in
// total. External items are stored once per external id and tagged with topic.
func (r *ContentResolver) Resolve(ctx context.Context, topic, difficulty string, limit int) ([]models.Content, error) {
	topic = strings.TrimSpace(topic)
	if limit <= 0 || topic == "" {
		return []models.Content{}, nil
	}

	local, err := r.store.SearchByTopic(ctx, topic, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search local content: %w", err)
	}
	if len(local) >= limit {
		r.metrics.ContentResolvedTotal.WithLabelValues("local").Add(float64(limit))
		return local[:limit], nil
	}

	needed := limit - len(local)
	external, err := r.provider.Search(ctx, topic, needed)
	if err != nil {
		return nil, err
	}
	if len(external) > needed {
		external = external[:needed]
	}

	result := make([]models.Content, 0, len(local)+len(external))
	result = append(result, local...)

	for _, item := range external {
		c, err := r.storeExternal(ctx, item, topic, difficulty)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	r.metrics.ContentResolvedTotal.WithLabelValues("local").Add(float64(len(local)))
	r.metrics.ContentResolvedTotal.WithLabelValues("external").Add(float64(len(external)))
	r.log.Debug("resolved content",
		"topic", topic,
		"local", len(local),
		"external", len(external),
	)
	return result, nil
}

func (r *ContentResolver) storeExternal(ctx context.Context, item models.ExternalContent, topic, difficulty string) (*models.Content, error) {
	existing, err := r.store.GetByExternalID(ctx, item.ExternalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up external content %s: %w", item.ExternalID, err)
	}

	duration := item.DurationSeconds
	if duration <= 0 {
		duration = defaultContentDurationSeconds
	}
	externalID := item.ExternalID

	c := &models.Content{
		Title:           item.Title,
		Description:     optionalString(item.Description),
		URL:             item.URL,
		Source:          item.Source,
		Type:            models.ContentTypeVideo,
		DurationSeconds: duration,
		Thumbnail:       optionalString(item.Thumbnail),
		ExternalID:      &externalID,
		Difficulty:      optionalString(difficulty),
	}

	created, err := r.store.CreateWithTag(ctx, c, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to store external content %s: %w", item.ExternalID, err)
	}
	return created, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
