package services

import (
	"context"
	"errors"
	"fmt"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/repository"
)

// hydratePoolSize is how many items are resolved per hydration; sessions
// beyond it reuse items round-robin.
const hydratePoolSize = 20

type contentResolver interface {
	Resolve(ctx context.Context, topic, difficulty string, limit int) ([]models.Content, error)
}

// PlanHydrator fills the content slots of a plan's sessions.
type PlanHydrator struct {
	plans    PlanStore
	resolver contentResolver
	queue    JobEnqueuer
	realtime Publisher
	log      *logger.Logger
}

func NewPlanHydrator(plans PlanStore, resolver contentResolver, queue JobEnqueuer, realtime Publisher, log *logger.Logger) *PlanHydrator {
	return &PlanHydrator{
		plans:    plans,
		resolver: resolver,
		queue:    queue,
		realtime: realtime,
		log:      log,
	}
}

// Hydrate assigns pool[i mod len(pool)] to the i-th session still lacking
// content. Each assignment only claims an empty slot, so concurrent or
// repeated runs never overwrite content. An error leaves the plan partially
// hydrated; a later run picks up the remaining sessions.
func (h *PlanHydrator) Hydrate(ctx context.Context, p models.HydratePlanPayload) error {
	log := h.log.With("plan_id", p.PlanID, "topic", p.Topic)

	plan, err := h.plans.GetByID(ctx, p.PlanID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("plan no longer exists, skipping hydration")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}

	pool, err := h.resolver.Resolve(ctx, p.Topic, p.Difficulty, hydratePoolSize)
	if err != nil {
		return fmt.Errorf("failed to resolve content: %w", err)
	}
	if len(pool) == 0 {
		log.Warn("no content available for plan")
		return nil
	}

	sessions, err := h.plans.ListUnhydratedSessions(ctx, p.PlanID)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	assigned := 0
	for i, session := range sessions {
		content := pool[i%len(pool)]
		claimed, err := h.plans.AssignContent(ctx, session.ID, content.ID)
		if err != nil {
			return fmt.Errorf("failed to assign content to session %s: %w", session.ID, err)
		}
		if claimed {
			assigned++
		}
	}

	log.Info("plan hydrated", "sessions", len(sessions), "assigned", assigned, "pool", len(pool))

	err = h.queue.Enqueue(ctx, models.NotificationPayload{
		UserID: plan.UserID,
		Title:  "Study Plan Ready 📚",
		Body:   fmt.Sprintf("Your custom plan for %s is ready with video recommendations!", p.Topic),
		URL:    "/schedule",
	})
	if err != nil {
		log.Error("failed to enqueue plan ready notification", "error", err)
	}

	if h.realtime != nil {
		h.realtime.Publish(ctx, plan.UserID, models.WSMessage{
			Type:    "plan_hydrated",
			Payload: models.PlanHydratedEvent{PlanID: plan.ID, Assigned: assigned},
		})
	}
	return nil
}
