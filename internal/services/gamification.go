package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/repository"
)

const (
	XPSourceSession = "SESSION"

	xpPerMinute    = 10
	xpPerLevelStep = 100
)

type GamificationStore interface {
	ApplyXP(ctx context.Context, userID uuid.UUID, amount int, source string, levelUp func(xp, level int) (int, int)) (*models.User, error)
	UpdateStreak(ctx context.Context, userID uuid.UUID, now time.Time, next func(last *time.Time, streak int, now time.Time) int) (int, error)
}

type GamificationService struct {
	store GamificationStore
	loc   *time.Location
	now   func() time.Time
	log   *logger.Logger
}

func NewGamificationService(store GamificationStore, loc *time.Location, log *logger.Logger) *GamificationService {
	if loc == nil {
		loc = time.UTC
	}
	return &GamificationService{store: store, loc: loc, now: time.Now, log: log}
}

// XPForDuration awards 10 XP per minute of learning, rounded.
func XPForDuration(durationSeconds int) int {
	return int(math.Round(float64(durationSeconds) / 60 * xpPerMinute))
}

// ApplyLevelUps spends XP on levels. Reaching level L+1 costs L*100 XP and
// the remainder carries over.
func ApplyLevelUps(xp, level int) (int, int) {
	if level < 1 {
		level = 1
	}
	for xp >= level*xpPerLevelStep {
		xp -= level * xpPerLevelStep
		level++
	}
	return xp, level
}

// NextStreak compares calendar days in now's location. Activity on the same
// day keeps the streak, the next day extends it, anything else restarts it.
func NextStreak(last *time.Time, streak int, now time.Time) int {
	if last == nil {
		return 1
	}
	diff := calendarDaysBetween(*last, now)
	switch diff {
	case 0:
		return streak
	case 1:
		return streak + 1
	default:
		return 1
	}
}

func calendarDaysBetween(a, b time.Time) int {
	loc := b.Location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	days := int(math.Ceil(db.Sub(da).Hours() / 24))
	if days < 0 {
		return -days
	}
	return days
}

// SessionReward is the progress change for one finished session: XP for its
// duration with level-ups applied, and the streak advanced to today.
func (s *GamificationService) SessionReward(durationSeconds int, p models.Progress) (int, models.Progress) {
	now := s.now().In(s.loc)
	earned := max(XPForDuration(durationSeconds), 0)
	p.XP, p.Level = ApplyLevelUps(p.XP+earned, p.Level)
	p.Streak = NextStreak(p.LastActivity, p.Streak, now)
	p.LastActivity = &now
	return earned, p
}

// AwardXP converts a session duration into XP and applies it. Zero or
// negative amounts are not recorded.
func (s *GamificationService) AwardXP(ctx context.Context, userID uuid.UUID, durationSeconds int, source string) (int, error) {
	amount := XPForDuration(durationSeconds)
	if amount <= 0 {
		return 0, nil
	}

	user, err := s.store.ApplyXP(ctx, userID, amount, source, ApplyLevelUps)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, &NotFoundError{Message: "User not found"}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to apply xp: %w", err)
	}

	s.log.Info("xp awarded", "user_id", userID, "amount", amount, "source", source, "level", user.Level)
	return amount, nil
}

func (s *GamificationService) UpdateStreak(ctx context.Context, userID uuid.UUID) (int, error) {
	streak, err := s.store.UpdateStreak(ctx, userID, s.now().In(s.loc), NextStreak)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, &NotFoundError{Message: "User not found"}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update streak: %w", err)
	}
	return streak, nil
}
