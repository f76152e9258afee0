package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/models"
)

// ContentProvider finds external learning content for a topic. Search returns
// at most limit items.
type ContentProvider interface {
	Name() string
	Search(ctx context.Context, topic string, limit int) ([]models.ExternalContent, error)
}

const (
	mockMinDurationSeconds = 300
	mockMaxDurationSeconds = 3600
	mockThumbnail          = "https://img.youtube.com/vi/dQw4w9WgXcQ/hqdefault.jpg"
)

// MockProvider synthesizes placeholder videos. It never fails.
type MockProvider struct {
	mu   sync.Mutex
	rand *rand.Rand
	now  func() time.Time
	seq  int64
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:  time.Now,
	}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Search(_ context.Context, topic string, limit int) ([]models.ExternalContent, error) {
	if limit <= 0 {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	stamp := p.now().UnixNano()
	items := make([]models.ExternalContent, limit)
	for i := range items {
		p.seq++
		items[i] = models.ExternalContent{
			ExternalID:      fmt.Sprintf("mock_%s_%d_%d_%d", topic, i, stamp, p.seq),
			Title:           fmt.Sprintf("%s Tutorial Part %d (Mock)", topic, i+1),
			Description:     fmt.Sprintf("This is a mock video description for learning %s.", topic),
			URL:             "https://www.youtube.com/results?search_query=" + url.QueryEscape(topic),
			Thumbnail:       mockThumbnail,
			DurationSeconds: mockMinDurationSeconds + p.rand.Intn(mockMaxDurationSeconds-mockMinDurationSeconds+1),
			Source:          p.Name(),
		}
	}
	return items, nil
}

// FallbackProvider answers from Fallback whenever Primary fails.
type FallbackProvider struct {
	Primary  ContentProvider
	Fallback ContentProvider
	log      *logger.Logger
}

func NewFallbackProvider(primary, fallback ContentProvider, log *logger.Logger) *FallbackProvider {
	return &FallbackProvider{Primary: primary, Fallback: fallback, log: log}
}

func (p *FallbackProvider) Name() string { return p.Primary.Name() }

func (p *FallbackProvider) Search(ctx context.Context, topic string, limit int) ([]models.ExternalContent, error) {
	items, err := p.Primary.Search(ctx, topic, limit)
	if err == nil {
		return items, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	p.log.Warn("content provider failed, using fallback",
		"provider", p.Primary.Name(),
		"fallback", p.Fallback.Name(),
		"topic", topic,
		"error", err,
	)
	return p.Fallback.Search(ctx, topic, limit)
}
