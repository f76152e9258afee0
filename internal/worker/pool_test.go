package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/models"
)

type recordingHandlers struct {
	mu            sync.Mutex
	hydrated      []models.HydratePlanPayload
	reports       []models.WeeklyReportPayload
	notifications []models.NotificationPayload
	failTimes     int
}

func (h *recordingHandlers) fail() error {
	if h.failTimes > 0 {
		h.failTimes--
		return errors.New("transient failure")
	}
	return nil
}

func (h *recordingHandlers) Hydrate(_ context.Context, p models.HydratePlanPayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail(); err != nil {
		return err
	}
	h.hydrated = append(h.hydrated, p)
	return nil
}

func (h *recordingHandlers) Generate(_ context.Context, p models.WeeklyReportPayload) (*models.WeeklyReport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail(); err != nil {
		return nil, err
	}
	h.reports = append(h.reports, p)
	return &models.WeeklyReport{UserID: p.UserID}, nil
}

func (h *recordingHandlers) Dispatch(_ context.Context, p models.NotificationPayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail(); err != nil {
		return err
	}
	h.notifications = append(h.notifications, p)
	return nil
}

func (h *recordingHandlers) counts() (int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hydrated), len(h.reports), len(h.notifications)
}

func setupPool(t *testing.T, h *recordingHandlers, maxAttempts int) (*Pool, *Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := NewQueue(client)
	p := NewPool(client, q, h, h, h, PoolConfig{MaxAttempts: maxAttempts, PopTimeout: 100 * time.Millisecond}, logger.NewNop())
	p.backoff = func(int) time.Duration { return 0 }
	return p, q, mr
}

func popRaw(t *testing.T, mr *miniredis.Miniredis, queue string) string {
	t.Helper()
	raw, err := mr.Lpop(queue)
	require.NoError(t, err)
	return raw
}

func TestQueue_EnqueueRoutesByType(t *testing.T) {
	_, q, mr := setupPool(t, &recordingHandlers{}, 3)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, q.Enqueue(ctx, models.HydratePlanPayload{PlanID: uuid.New(), Topic: "Go"}))
	require.NoError(t, q.Enqueue(ctx, models.WeeklyReportPayload{UserID: userID, WeekStartDate: time.Now()}))
	require.NoError(t, q.Enqueue(ctx, models.NotificationPayload{UserID: userID, Title: "Hi"}))

	for _, name := range Queues {
		n, err := q.Len(ctx, name)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n, name)
	}

	var job models.Job
	require.NoError(t, json.Unmarshal([]byte(popRaw(t, mr, QueueNotifications)), &job))
	assert.Equal(t, models.JobTypeNotification, job.Type)
	assert.Equal(t, 0, job.Attempt)
	assert.NotEqual(t, uuid.Nil, job.ID)
}

func TestQueue_RejectsInvalidPayload(t *testing.T) {
	_, q, mr := setupPool(t, &recordingHandlers{}, 3)

	err := q.Enqueue(context.Background(), models.NotificationPayload{UserID: uuid.New()})
	assert.ErrorIs(t, err, models.ErrInvalidJob)
	assert.False(t, mr.Exists(QueueNotifications))
}

func TestPool_HandleDispatchesByType(t *testing.T) {
	h := &recordingHandlers{}
	p, q, mr := setupPool(t, h, 3)
	ctx := context.Background()
	planID := uuid.New()

	require.NoError(t, q.Enqueue(ctx, models.HydratePlanPayload{PlanID: planID, Topic: "Go"}))
	require.NoError(t, q.Enqueue(ctx, models.WeeklyReportPayload{UserID: uuid.New(), WeekStartDate: time.Now()}))

	p.handle(QueueHydratePlan, popRaw(t, mr, QueueHydratePlan))
	p.handle(QueueReports, popRaw(t, mr, QueueReports))

	hydrated, reports, _ := h.counts()
	assert.Equal(t, 1, hydrated)
	assert.Equal(t, 1, reports)
	assert.Equal(t, planID, h.hydrated[0].PlanID)

	keys := mr.Keys()
	for _, k := range keys {
		assert.NotContains(t, k, "job_lock:", "lock should be released")
	}
}

func TestPool_InvalidJobsAreDropped(t *testing.T) {
	h := &recordingHandlers{}
	p, _, mr := setupPool(t, h, 3)

	p.handle(QueueHydratePlan, "{not json")

	bad, _ := json.Marshal(models.Job{ID: uuid.New(), Type: models.JobTypeHydratePlan, Payload: json.RawMessage(`{"topic":""}`)})
	p.handle(QueueHydratePlan, string(bad))

	unknown, _ := json.Marshal(models.Job{ID: uuid.New(), Type: "send-fax", Payload: json.RawMessage(`{}`)})
	p.handle(QueueHydratePlan, string(unknown))

	p.Stop()
	hydrated, _, _ := h.counts()
	assert.Zero(t, hydrated)
	assert.False(t, mr.Exists(QueueHydratePlan), "invalid jobs must not be retried")
}

func TestPool_FailedJobIsRetriedWithIncrementedAttempt(t *testing.T) {
	h := &recordingHandlers{failTimes: 1}
	p, q, mr := setupPool(t, h, 3)
	require.NoError(t, q.Enqueue(context.Background(), models.NotificationPayload{UserID: uuid.New(), Title: "Hi"}))

	p.handle(QueueNotifications, popRaw(t, mr, QueueNotifications))

	require.Eventually(t, func() bool { return mr.Exists(QueueNotifications) }, time.Second, 10*time.Millisecond)
	var job models.Job
	raw := popRaw(t, mr, QueueNotifications)
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, 1, job.Attempt)

	p.handle(QueueNotifications, raw)
	_, _, notifications := h.counts()
	assert.Equal(t, 1, notifications)
}

func TestPool_GivesUpAfterMaxAttempts(t *testing.T) {
	h := &recordingHandlers{failTimes: 10}
	p, q, mr := setupPool(t, h, 2)
	require.NoError(t, q.Enqueue(context.Background(), models.NotificationPayload{UserID: uuid.New(), Title: "Hi"}))

	p.handle(QueueNotifications, popRaw(t, mr, QueueNotifications))
	require.Eventually(t, func() bool { return mr.Exists(QueueNotifications) }, time.Second, 10*time.Millisecond)

	p.handle(QueueNotifications, popRaw(t, mr, QueueNotifications))
	p.Stop()
	assert.False(t, mr.Exists(QueueNotifications))
}

func TestPool_SkipsLockedJob(t *testing.T) {
	h := &recordingHandlers{}
	p, q, mr := setupPool(t, h, 3)
	require.NoError(t, q.Enqueue(context.Background(), models.NotificationPayload{UserID: uuid.New(), Title: "Hi"}))

	raw := popRaw(t, mr, QueueNotifications)
	var job models.Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	require.NoError(t, mr.Set("job_lock:"+job.ID.String(), "1"))

	p.handle(QueueNotifications, raw)
	_, _, notifications := h.counts()
	assert.Zero(t, notifications)
}

func TestPool_StartConsumesQueues(t *testing.T) {
	h := &recordingHandlers{}
	p, q, _ := setupPool(t, h, 3)
	p.cfg.Concurrency = map[string]int{QueueNotifications: 2}
	p.Start()

	ctx := context.Background()
	userID := uuid.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, models.NotificationPayload{UserID: userID, Title: "Hi"}))
	}
	require.NoError(t, q.Enqueue(ctx, models.HydratePlanPayload{PlanID: uuid.New(), Topic: "Go"}))

	require.Eventually(t, func() bool {
		hydrated, _, notifications := h.counts()
		return hydrated == 1 && notifications == 5
	}, 3*time.Second, 20*time.Millisecond)

	p.Stop()
}
