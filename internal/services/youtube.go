package services

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"mindsphere-backend/internal/models"
)

// YouTubeProvider searches the YouTube Data API for tutorial videos and
// resolves their durations with a follow-up videos.list call.
type YouTubeProvider struct {
	service *youtube.Service
}

func NewYouTubeProvider(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeProvider, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}
	return &YouTubeProvider{service: svc}, nil
}

func (p *YouTubeProvider) Name() string { return "YouTube" }

func (p *YouTubeProvider) Search(ctx context.Context, topic string, limit int) ([]models.ExternalContent, error) {
	if limit <= 0 {
		return nil, nil
	}

	search, err := p.service.Search.List([]string{"snippet"}).
		Q(topic + " tutorial").
		Type("video").
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: youtube search: %v", ErrProviderUnavailable, err)
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	videos, err := p.service.Videos.List([]string{"contentDetails", "snippet"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: youtube videos: %v", ErrProviderUnavailable, err)
	}

	byID := make(map[string]*youtube.Video, len(videos.Items))
	for _, v := range videos.Items {
		byID[v.Id] = v
	}

	items := make([]models.ExternalContent, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			continue
		}
		item := models.ExternalContent{
			ExternalID: id,
			URL:        "https://www.youtube.com/watch?v=" + id,
			Source:     p.Name(),
		}
		if v.Snippet != nil {
			item.Title = v.Snippet.Title
			item.Description = v.Snippet.Description
			item.Thumbnail = thumbnailURL(v.Snippet.Thumbnails)
		}
		if v.ContentDetails != nil {
			item.DurationSeconds = ParseISO8601Duration(v.ContentDetails.Duration)
		}
		items = append(items, item)
	}
	return items, nil
}

func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	if t.High != nil && t.High.Url != "" {
		return t.High.Url
	}
	if t.Default != nil {
		return t.Default.Url
	}
	return ""
}
