package models

import (
	"time"

	"github.com/google/uuid"
)

type WeeklyReport struct {
	ID                  uuid.UUID   `json:"id"`
	UserID              uuid.UUID   `json:"user_id"`
	WeekStartDate       time.Time   `json:"week_start_date"`
	TotalSessions       int         `json:"total_sessions"`
	TotalProductiveMins int         `json:"total_productive_mins"`
	Score               int         `json:"score"`
	ChartData           []DailyStat `json:"chart_data"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// DailyStat is one bar of the weekly chart. Date is formatted as 2006-01-02.
type DailyStat struct {
	Day     string `json:"day"`
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}

// CompletedSession is the slice of a learning session the report needs.
type CompletedSession struct {
	StartTime       time.Time
	DurationSeconds int
}

// GenerateReportRequest accepts RFC 3339 or YYYY-MM-DD. Empty means the
// current week.
type GenerateReportRequest struct {
	WeekStartDate string `json:"week_start_date"`
}
