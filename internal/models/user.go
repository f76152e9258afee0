package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	FullName      string     `json:"full_name"`
	Role          string     `json:"role"`
	CurrentXP     int        `json:"current_xp"`
	Level         int        `json:"level"`
	CurrentStreak int        `json:"current_streak"`
	LastActivity  *time.Time `json:"last_activity"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Preferences struct {
	UserID          uuid.UUID `json:"user_id"`
	Topics          []string  `json:"topics"`
	DailyGoalMins   int       `json:"daily_goal_mins"`
	QuietHoursStart *string   `json:"quiet_hours_start"`
	QuietHoursEnd   *string   `json:"quiet_hours_end"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Profile struct {
	User        *User        `json:"user"`
	Preferences *Preferences `json:"preferences"`
}

type UpdatePreferencesRequest struct {
	Topics          []string `json:"topics"`
	DailyGoalMins   int      `json:"daily_goal_mins"`
	QuietHoursStart *string  `json:"quiet_hours_start"`
	QuietHoursEnd   *string  `json:"quiet_hours_end"`
}

// XPTransaction is one ledger entry. Source is e.g. "SESSION".
type XPTransaction struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Amount    int        `json:"amount"`
	Source    string     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
}

// Progress is the gamification state kept on the user row.
type Progress struct {
	XP           int
	Level        int
	Streak       int
	LastActivity *time.Time
}

type RegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthTokens struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}
