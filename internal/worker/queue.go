package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mindsphere-backend/internal/models"
)

const (
	QueueHydratePlan   = "queue:hydrate-plan"
	QueueReports       = "queue:reports"
	QueueNotifications = "queue:notifications"
)

// Queues lists every queue the pool consumes.
var Queues = []string{QueueHydratePlan, QueueReports, QueueNotifications}

func jobQueueName(jobType string) (string, error) {
	switch jobType {
	case models.JobTypeHydratePlan:
		return QueueHydratePlan, nil
	case models.JobTypeWeeklyReport:
		return QueueReports, nil
	case models.JobTypeNotification:
		return QueueNotifications, nil
	default:
		return "", fmt.Errorf("%w: unknown job type %q", models.ErrInvalidJob, jobType)
	}
}

// Queue pushes job envelopes onto redis lists.
type Queue struct {
	redis *redis.Client
	now   func() time.Time
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient, now: time.Now}
}

// Enqueue validates payload and pushes a new envelope for it. Invalid
// payloads are rejected with models.ErrInvalidJob.
func (q *Queue) Enqueue(ctx context.Context, payload models.JobPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", payload.JobType(), err)
	}
	return q.push(ctx, &models.Job{
		ID:         uuid.New(),
		Type:       payload.JobType(),
		Payload:    raw,
		EnqueuedAt: q.now().UTC(),
	})
}

func (q *Queue) push(ctx context.Context, job *models.Job) error {
	name, err := jobQueueName(job.Type)
	if err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.redis.LPush(ctx, name, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", job.Type, err)
	}
	return nil
}

// Len reports how many jobs are waiting on a queue.
func (q *Queue) Len(ctx context.Context, name string) (int64, error) {
	return q.redis.LLen(ctx, name).Result()
}
