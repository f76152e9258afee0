package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	JobTypeHydratePlan  = "hydrate-plan"
	JobTypeWeeklyReport = "weekly-report"
	JobTypeNotification = "notification"
)

// ErrInvalidJob marks a payload that can never succeed. The worker pool drops
// such jobs instead of retrying them.
var ErrInvalidJob = errors.New("invalid job payload")

// Job is the envelope pushed onto a redis queue. Attempt starts at 0 and is
// incremented each time the pool re-enqueues the job after a failure.
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Attempt    int             `json:"attempt"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// JobPayload is implemented by every payload variant.
type JobPayload interface {
	JobType() string
	Validate() error
}

type HydratePlanPayload struct {
	PlanID     uuid.UUID `json:"plan_id"`
	Topic      string    `json:"topic"`
	Difficulty string    `json:"difficulty"`
}

func (HydratePlanPayload) JobType() string { return JobTypeHydratePlan }

func (p HydratePlanPayload) Validate() error {
	if p.PlanID == uuid.Nil {
		return fmt.Errorf("%w: plan_id is required", ErrInvalidJob)
	}
	if strings.TrimSpace(p.Topic) == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidJob)
	}
	return nil
}

type WeeklyReportPayload struct {
	UserID        uuid.UUID `json:"user_id"`
	WeekStartDate time.Time `json:"week_start_date"`
}

func (WeeklyReportPayload) JobType() string { return JobTypeWeeklyReport }

func (p WeeklyReportPayload) Validate() error {
	if p.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", ErrInvalidJob)
	}
	if p.WeekStartDate.IsZero() {
		return fmt.Errorf("%w: week_start_date is required", ErrInvalidJob)
	}
	return nil
}

type NotificationPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	URL    string    `json:"url,omitempty"`
}

func (NotificationPayload) JobType() string { return JobTypeNotification }

func (p NotificationPayload) Validate() error {
	if p.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required", ErrInvalidJob)
	}
	if p.Title == "" && p.Body == "" {
		return fmt.Errorf("%w: title or body is required", ErrInvalidJob)
	}
	return nil
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type PlanHydratedEvent struct {
	PlanID   uuid.UUID `json:"plan_id"`
	Assigned int       `json:"assigned"`
}

type NotificationEvent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
