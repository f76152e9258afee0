package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/repository"
)

const (
	day = 24 * time.Hour

	// maxPlanDays bounds the number of sessions a single plan may create.
	maxPlanDays = 366
)

type PlanStore interface {
	CreateWithSessions(ctx context.Context, plan *models.StudyPlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudyPlan, error)
	GetLatestByUser(ctx context.Context, userID uuid.UUID) (*models.StudyPlan, error)
	ListSessions(ctx context.Context, planID uuid.UUID) ([]models.StudySession, error)
	ListUnhydratedSessions(ctx context.Context, planID uuid.UUID) ([]models.StudySession, error)
	AssignContent(ctx context.Context, sessionID, contentID uuid.UUID) (bool, error)
}

// JobEnqueuer hands a payload to the background queue for its job type.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, payload models.JobPayload) error
}

type GeneratePlanParams struct {
	UserID     uuid.UUID
	Topic      string
	Difficulty string
	StartDate  time.Time
	EndDate    time.Time
}

type PlanService struct {
	plans    PlanStore
	queue    JobEnqueuer
	syllabus Syllabus
	log      *logger.Logger
}

func NewPlanService(plans PlanStore, queue JobEnqueuer, syllabus Syllabus, log *logger.Logger) *PlanService {
	if syllabus == nil {
		syllabus = StaticSyllabus{}
	}
	return &PlanService{plans: plans, queue: queue, syllabus: syllabus, log: log}
}

// NormalizeDifficulty maps any casing of a known level to its canonical form.
// Empty input means Beginner.
func NormalizeDifficulty(d string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "", "beginner":
		return models.DifficultyBeginner, true
	case "intermediate":
		return models.DifficultyIntermediate, true
	case "advanced":
		return models.DifficultyAdvanced, true
	}
	return "", false
}

// PlanDays is the number of sessions for [start, end]: whole days spanned,
// rounded up, plus one, never less than one.
func PlanDays(start, end time.Time) int {
	diff := end.Sub(start)
	days := int(diff / day)
	if diff%day > 0 {
		days++
	}
	days++
	if days < 1 {
		return 1
	}
	return days
}

// GeneratePlan stores a plan with one content-less session per day and
// enqueues its hydration. The plan is returned even if enqueueing fails;
// RequestHydration can retry it.
func (s *PlanService) GeneratePlan(ctx context.Context, p GeneratePlanParams) (*models.StudyPlan, error) {
	fieldErrors := make(map[string]string)

	topic := strings.TrimSpace(p.Topic)
	if topic == "" {
		fieldErrors["topic"] = "Topic is required"
	}
	difficulty, ok := NormalizeDifficulty(p.Difficulty)
	if !ok {
		fieldErrors["difficulty"] = "Difficulty must be Beginner, Intermediate, or Advanced"
	}
	if p.StartDate.IsZero() {
		fieldErrors["start_date"] = "Start date is required"
	}
	if p.EndDate.IsZero() {
		fieldErrors["end_date"] = "End date is required"
	} else if !p.EndDate.After(p.StartDate) {
		fieldErrors["end_date"] = "End date must be after start date"
	} else if PlanDays(p.StartDate, p.EndDate) > maxPlanDays {
		fieldErrors["end_date"] = fmt.Sprintf("Plans may span at most %d days", maxPlanDays)
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	totalDays := PlanDays(p.StartDate, p.EndDate)
	subTopics, err := s.syllabus.SubTopics(ctx, topic, difficulty, totalDays)
	if err != nil || len(subTopics) < totalDays {
		subTopics, _ = StaticSyllabus{}.SubTopics(ctx, topic, difficulty, totalDays)
	}

	plan := &models.StudyPlan{
		UserID:     p.UserID,
		Topic:      topic,
		Difficulty: difficulty,
		StartDate:  p.StartDate,
		EndDate:    p.EndDate,
		Sessions:   make([]models.StudySession, totalDays),
	}
	for i := 0; i < totalDays; i++ {
		plan.Sessions[i] = models.StudySession{
			DayOffset: i,
			Date:      p.StartDate.AddDate(0, 0, i),
			Topic:     fmt.Sprintf("%s: Day %d - %s", topic, i+1, subTopics[i]),
		}
	}

	if err := s.plans.CreateWithSessions(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	err = s.queue.Enqueue(ctx, models.HydratePlanPayload{
		PlanID:     plan.ID,
		Topic:      topic,
		Difficulty: difficulty,
	})
	if err != nil {
		s.log.Error("failed to enqueue plan hydration", "plan_id", plan.ID, "error", err)
	}

	s.log.Info("study plan created", "plan_id", plan.ID, "user_id", p.UserID, "days", totalDays)
	return plan, nil
}

// GetPlan returns the user's most recent plan with its sessions, or nil if
// the user has none.
func (s *PlanService) GetPlan(ctx context.Context, userID uuid.UUID) (*models.StudyPlan, error) {
	plan, err := s.plans.GetLatestByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sessions, err := s.plans.ListSessions(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	plan.Sessions = sessions
	return plan, nil
}

// RequestHydration re-enqueues hydration for a plan owned by userID.
func (s *PlanService) RequestHydration(ctx context.Context, userID, planID uuid.UUID) error {
	plan, err := s.plans.GetByID(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: "Study plan not found"}
	}
	if err != nil {
		return err
	}
	if plan.UserID != userID {
		return &ForbiddenError{Message: "You do not have access to this study plan"}
	}

	return s.queue.Enqueue(ctx, models.HydratePlanPayload{
		PlanID:     plan.ID,
		Topic:      plan.Topic,
		Difficulty: plan.Difficulty,
	})
}
