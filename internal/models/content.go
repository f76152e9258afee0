package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ContentTypeVideo       = "VIDEO"
	ContentTypeArticle     = "ARTICLE"
	ContentTypeMicroModule = "MICRO_MODULE"
)

// Content is a catalog item. ExternalID is set for items that came from an
// external provider and is unique across the catalog.
type Content struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     *string   `json:"description"`
	URL             string    `json:"url"`
	Source          string    `json:"source"`
	Type            string    `json:"type"` // "VIDEO" | "ARTICLE" | "MICRO_MODULE"
	DurationSeconds int       `json:"duration_seconds"`
	Thumbnail       *string   `json:"thumbnail"`
	ExternalID      *string   `json:"external_id"`
	Difficulty      *string   `json:"difficulty"`
	Tags            []string  `json:"tags,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ExternalContent is an item returned by an external content provider before
// it is stored in the catalog.
type ExternalContent struct {
	ExternalID      string `json:"external_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	URL             string `json:"url"`
	Thumbnail       string `json:"thumbnail"`
	DurationSeconds int    `json:"duration_seconds"`
	Source          string `json:"source"`
}

type ContentPage struct {
	Items  []Content `json:"items"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

type Recommendation struct {
	Content     Content `json:"content"`
	Explanation string  `json:"explanation"`
}
