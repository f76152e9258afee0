package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DifficultyBeginner     = "Beginner"
	DifficultyIntermediate = "Intermediate"
	DifficultyAdvanced     = "Advanced"
)

type StudyPlan struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	Topic      string         `json:"topic"`
	Difficulty string         `json:"difficulty"`
	StartDate  time.Time      `json:"start_date"`
	EndDate    time.Time      `json:"end_date"`
	CreatedAt  time.Time      `json:"created_at"`
	Sessions   []StudySession `json:"sessions"`
}

// StudySession is one scheduled day of a plan. ContentID stays nil until the
// plan is hydrated.
type StudySession struct {
	ID          uuid.UUID  `json:"id"`
	PlanID      uuid.UUID  `json:"plan_id"`
	DayOffset   int        `json:"day_offset"`
	Date        time.Time  `json:"date"`
	Topic       string     `json:"topic"`
	IsCompleted bool       `json:"is_completed"`
	ContentID   *uuid.UUID `json:"content_id"`
	Content     *Content   `json:"content,omitempty"`
}

// GeneratePlanRequest dates accept RFC 3339 or YYYY-MM-DD. StartDate
// defaults to now.
type GeneratePlanRequest struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}
