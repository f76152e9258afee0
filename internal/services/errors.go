package services

import "errors"

var (
	// ErrProviderUnavailable wraps any transient failure of an external
	// content or syllabus provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrSubscriptionGone means the push service reported the subscription
	// as permanently invalid.
	ErrSubscriptionGone = errors.New("push subscription gone")
)

// Custom errors
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }
