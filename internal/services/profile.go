package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/repository"
)

const (
	minDailyGoalMins     = 5
	maxDailyGoalMins     = 300
	defaultDailyGoalMins = 15
	maxPreferenceTopics  = 20
)

var clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetPreferences(ctx context.Context, userID uuid.UUID) (*models.Preferences, error)
	UpsertPreferences(ctx context.Context, p *models.Preferences) error
}

type recommendationCache interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

type ProfileService struct {
	users ProfileStore
	recs  recommendationCache
	log   *logger.Logger
}

func NewProfileService(users ProfileStore, recs recommendationCache, log *logger.Logger) *ProfileService {
	return &ProfileService{users: users, recs: recs, log: log}
}

// GetProfile returns the user with their preferences. Users who never saved
// preferences get the defaults.
func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "User not found"}
	}
	if err != nil {
		return nil, err
	}

	prefs, err := s.users.GetPreferences(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		prefs = &models.Preferences{UserID: userID, Topics: []string{}, DailyGoalMins: defaultDailyGoalMins}
	} else if err != nil {
		return nil, err
	}

	return &models.Profile{User: user, Preferences: prefs}, nil
}

func (s *ProfileService) UpdatePreferences(ctx context.Context, userID uuid.UUID, req models.UpdatePreferencesRequest) (*models.Preferences, error) {
	fieldErrors := make(map[string]string)

	topics := make([]string, 0, len(req.Topics))
	seen := make(map[string]bool)
	for _, t := range req.Topics {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		topics = append(topics, t)
	}
	if len(topics) > maxPreferenceTopics {
		fieldErrors["topics"] = "Too many topics"
	}
	if req.DailyGoalMins < minDailyGoalMins || req.DailyGoalMins > maxDailyGoalMins {
		fieldErrors["daily_goal_mins"] = "Daily goal must be between 5 and 300 minutes"
	}
	if req.QuietHoursStart != nil && !clockPattern.MatchString(*req.QuietHoursStart) {
		fieldErrors["quiet_hours_start"] = "Must be a time in HH:MM format"
	}
	if req.QuietHoursEnd != nil && !clockPattern.MatchString(*req.QuietHoursEnd) {
		fieldErrors["quiet_hours_end"] = "Must be a time in HH:MM format"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	prefs := &models.Preferences{
		UserID:          userID,
		Topics:          topics,
		DailyGoalMins:   req.DailyGoalMins,
		QuietHoursStart: req.QuietHoursStart,
		QuietHoursEnd:   req.QuietHoursEnd,
	}
	if err := s.users.UpsertPreferences(ctx, prefs); err != nil {
		return nil, err
	}

	if s.recs != nil {
		s.recs.Invalidate(ctx, userID)
	}
	return prefs, nil
}
