package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/metrics"
	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/repository"
)

const (
	recommendationLimit    = 5
	recommendationMinimum  = 3
	recommendationCacheTTL = 10 * time.Minute
)

type CatalogStore interface {
	List(ctx context.Context, limit, offset int) ([]models.Content, int, error)
	ListByTags(ctx context.Context, tags []string, limit int) ([]models.Content, error)
	ListExcluding(ctx context.Context, exclude []uuid.UUID, limit int) ([]models.Content, error)
}

type preferenceReader interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*models.Preferences, error)
}

type RecommendationService struct {
	catalog CatalogStore
	prefs   preferenceReader
	cache   *redis.Client
	log     *logger.Logger
}

func NewRecommendationService(catalog CatalogStore, prefs preferenceReader, cache *redis.Client, log *logger.Logger) *RecommendationService {
	return &RecommendationService{catalog: catalog, prefs: prefs, cache: cache, log: log}
}

func recommendationCacheKey(userID uuid.UUID) string {
	return "recs:" + userID.String()
}

// ListContent pages through the catalog, newest first.
func (s *RecommendationService) ListContent(ctx context.Context, limit, offset int) (*models.ContentPage, error) {
	items, total, err := s.catalog.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	if items == nil {
		items = []models.Content{}
	}
	return &models.ContentPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Recommend returns up to five items tagged with the user's preferred topics,
// topped up with other content when fewer than three match. Results are
// cached per user.
func (s *RecommendationService) Recommend(ctx context.Context, userID uuid.UUID) ([]models.Recommendation, error) {
	start := time.Now()
	defer func() {
		metrics.Get().RecommendationLatency.WithLabelValues("basic").Observe(time.Since(start).Seconds())
	}()

	key := recommendationCacheKey(userID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var recs []models.Recommendation
			if err := json.Unmarshal(cached, &recs); err == nil {
				return recs, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn("recommendation cache read failed", "user_id", userID, "error", err)
		}
	}

	var topics []string
	prefs, err := s.prefs.GetPreferences(ctx, userID)
	switch {
	case err == nil:
		topics = prefs.Topics
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	items, err := s.catalog.ListByTags(ctx, topics, recommendationLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load matching content: %w", err)
	}
	if len(items) < recommendationMinimum {
		exclude := make([]uuid.UUID, len(items))
		for i, c := range items {
			exclude[i] = c.ID
		}
		more, err := s.catalog.ListExcluding(ctx, exclude, recommendationLimit-len(items))
		if err != nil {
			return nil, fmt.Errorf("failed to load fallback content: %w", err)
		}
		items = append(items, more...)
	}

	recs := make([]models.Recommendation, len(items))
	for i, c := range items {
		recs[i] = models.Recommendation{Content: c, Explanation: explainRecommendation(c, topics)}
	}

	if s.cache != nil {
		if data, err := json.Marshal(recs); err == nil {
			if err := s.cache.Set(ctx, key, data, recommendationCacheTTL).Err(); err != nil {
				s.log.Warn("recommendation cache write failed", "user_id", userID, "error", err)
			}
		}
	}
	return recs, nil
}

// Invalidate drops the cached recommendations for a user.
func (s *RecommendationService) Invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, recommendationCacheKey(userID)).Err(); err != nil {
		s.log.Warn("recommendation cache invalidation failed", "user_id", userID, "error", err)
	}
}

func explainRecommendation(c models.Content, topics []string) string {
	for _, tag := range c.Tags {
		for _, topic := range topics {
			if strings.EqualFold(strings.TrimSpace(topic), tag) {
				return "Matches your interest in " + tag
			}
		}
	}
	return "Popular content to start your journey"
}
