package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/metrics"
	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/repository"
)

// maxEventsPerBatch caps a single event upload.
const maxEventsPerBatch = 500

type LearningSessionStore interface {
	Create(ctx context.Context, s *models.LearningSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.LearningSession, error)
	EndWithReward(
		ctx context.Context,
		sessionID, userID uuid.UUID,
		endTime time.Time,
		source string,
		reward func(durationSeconds int, p models.Progress) (int, models.Progress),
	) (*models.EndSessionResult, error)
	InsertEvents(ctx context.Context, events []models.InteractionEvent) (int, error)
}

type contentLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Content, error)
}

type rewarder interface {
	SessionReward(durationSeconds int, p models.Progress) (int, models.Progress)
}

type SessionService struct {
	sessions LearningSessionStore
	content  contentLookup
	rewards  rewarder
	now      func() time.Time
	log      *logger.Logger

	// open holds sessions started by this process. The active-sessions
	// gauge is per process, so only these are counted down on end.
	open sync.Map
}

func NewSessionService(sessions LearningSessionStore, content contentLookup, rewards rewarder, log *logger.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		content:  content,
		rewards:  rewards,
		now:      time.Now,
		log:      log,
	}
}

func (s *SessionService) Start(ctx context.Context, userID, contentID uuid.UUID) (*models.LearningSession, error) {
	if contentID == uuid.Nil {
		return nil, &ValidationError{Fields: map[string]string{"content_id": "Content ID is required"}}
	}
	if _, err := s.content.GetByID(ctx, contentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Content not found"}
		}
		return nil, err
	}

	session := &models.LearningSession{
		UserID:    userID,
		ContentID: contentID,
		StartTime: s.now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	s.open.Store(session.ID, struct{}{})
	metrics.Get().ActiveSessions.Inc()
	return session, nil
}

// End closes the session and rewards the user in the same write, so a
// session is either still open or ended with its XP and streak applied.
func (s *SessionService) End(ctx context.Context, userID, sessionID uuid.UUID) (*models.EndSessionResult, error) {
	existing, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && existing.UserID != userID) {
		return nil, &NotFoundError{Message: "Session not found"}
	}
	if err != nil {
		return nil, err
	}
	if existing.EndTime != nil {
		return nil, &ConflictError{Message: "Session already ended"}
	}

	result, err := s.sessions.EndWithReward(ctx, sessionID, userID, s.now(), XPSourceSession, s.rewards.SessionReward)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &ConflictError{Message: "Session already ended"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	if _, ok := s.open.LoadAndDelete(sessionID); ok {
		metrics.Get().ActiveSessions.Dec()
	}

	s.log.Info("learning session ended",
		"session_id", sessionID,
		"user_id", userID,
		"duration_seconds", result.Session.DurationSeconds,
		"xp", result.XPAwarded,
		"streak", result.Streak,
	)
	return result, nil
}

// LogEvents stores a batch of interaction events. Events whose ID was already
// stored are skipped, so uploads can be retried. It returns how many were new.
func (s *SessionService) LogEvents(ctx context.Context, userID, sessionID uuid.UUID, events []models.InteractionEvent) (int, error) {
	fieldErrors := make(map[string]string)
	if len(events) == 0 {
		fieldErrors["events"] = "At least one event is required"
	} else if len(events) > maxEventsPerBatch {
		fieldErrors["events"] = fmt.Sprintf("At most %d events per request", maxEventsPerBatch)
	}
	for i, e := range events {
		if !models.IsValidEventType(e.Type) {
			fieldErrors[fmt.Sprintf("events[%d].type", i)] = "Type must be one of VIEW, COMPLETE, LIKE, SKIP, SHARE"
		}
	}
	if len(fieldErrors) > 0 {
		return 0, &ValidationError{Fields: fieldErrors}
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && session.UserID != userID) {
		return 0, &NotFoundError{Message: "Session not found"}
	}
	if err != nil {
		return 0, err
	}

	now := s.now()
	rows := make([]models.InteractionEvent, len(events))
	for i, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		e.SessionID = sessionID
		e.UserID = userID
		rows[i] = e
	}

	inserted, err := s.sessions.InsertEvents(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to store events: %w", err)
	}
	return inserted, nil
}
