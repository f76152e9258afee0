package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventView     = "VIEW"
	EventComplete = "COMPLETE"
	EventLike     = "LIKE"
	EventSkip     = "SKIP"
	EventShare    = "SHARE"
)

// LearningSession tracks time spent on one content item. EndTime and
// DurationSeconds are set once, when the session ends.
type LearningSession struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	ContentID       uuid.UUID  `json:"content_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationSeconds *int       `json:"duration_seconds"`
	IsCompleted     bool       `json:"is_completed"`
}

// InteractionEvent IDs are generated by the client so that retried uploads
// do not duplicate rows.
type InteractionEvent struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  json.RawMessage `json:"metadata"`
}

type StartSessionRequest struct {
	ContentID uuid.UUID `json:"content_id"`
}

type EndSessionRequest struct {
	SessionID uuid.UUID `json:"session_id"`
}

type LogEventsRequest struct {
	SessionID uuid.UUID          `json:"session_id"`
	Events    []InteractionEvent `json:"events"`
}

type EndSessionResult struct {
	Session   *LearningSession `json:"session"`
	XPAwarded int              `json:"xp_awarded"`
	Streak    int              `json:"streak"`
}

func IsValidEventType(t string) bool {
	switch t {
	case EventView, EventComplete, EventLike, EventSkip, EventShare:
		return true
	}
	return false
}
