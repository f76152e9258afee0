package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/metrics"
	"mindsphere-backend/internal/models"
)

const (
	defaultPopTimeout = 5 * time.Second
	jobLockTTL        = 10 * time.Minute
	jobTimeout        = 5 * time.Minute
)

type PlanHydrator interface {
	Hydrate(ctx context.Context, p models.HydratePlanPayload) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, p models.WeeklyReportPayload) (*models.WeeklyReport, error)
}

type NotificationDispatcher interface {
	Dispatch(ctx context.Context, p models.NotificationPayload) error
}

type PoolConfig struct {
	// Concurrency maps a queue name to its number of consumers. Queues with
	// no entry get one consumer.
	Concurrency map[string]int
	MaxAttempts int
	PopTimeout  time.Duration
}

// Pool consumes the job queues and dispatches each job to its handler.
// Failed jobs are re-enqueued with exponential backoff until MaxAttempts.
type Pool struct {
	redis     *redis.Client
	queue     *Queue
	hydrator  PlanHydrator
	reports   ReportGenerator
	notifier  NotificationDispatcher
	cfg       PoolConfig
	backoff   func(attempt int) time.Duration
	log       *logger.Logger
	metrics   *metrics.Metrics
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	retryWG   sync.WaitGroup
	retryMu   sync.Mutex
	retryTmrs map[*time.Timer]*models.Job
}

func NewPool(
	redisClient *redis.Client,
	queue *Queue,
	hydrator PlanHydrator,
	reports ReportGenerator,
	notifier NotificationDispatcher,
	cfg PoolConfig,
	log *logger.Logger,
) *Pool {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = defaultPopTimeout
	}
	return &Pool{
		redis:     redisClient,
		queue:     queue,
		hydrator:  hydrator,
		reports:   reports,
		notifier:  notifier,
		cfg:       cfg,
		backoff:   exponentialBackoff,
		log:       log,
		metrics:   metrics.Get(),
		stopChan:  make(chan struct{}),
		retryTmrs: make(map[*time.Timer]*models.Job),
	}
}

// exponentialBackoff waits 2^attempt seconds before retry number attempt.
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func (p *Pool) Start() {
	total := 0
	for _, q := range Queues {
		n := p.cfg.Concurrency[q]
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			p.wg.Add(1)
			go p.worker(i, q)
		}
		total += n
	}
	p.log.Info("worker pool started", "workers", total, "max_attempts", p.cfg.MaxAttempts)
}

// Stop waits for in-flight jobs to finish. Pending retries are pushed back
// onto their queues immediately so they are not lost.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()

	var pending []*models.Job
	p.retryMu.Lock()
	for t, job := range p.retryTmrs {
		if t.Stop() {
			pending = append(pending, job)
			delete(p.retryTmrs, t)
		}
	}
	p.retryMu.Unlock()

	for _, job := range pending {
		if err := p.queue.push(context.Background(), job); err != nil {
			p.log.Error("failed to requeue job on shutdown", "job_id", job.ID, "error", err)
		}
		p.retryWG.Done()
	}
	p.retryWG.Wait()
	p.log.Info("worker pool stopped")
}

func (p *Pool) worker(id int, queue string) {
	defer p.wg.Done()
	log := p.log.With("worker", id, "queue", queue)

	for {
		select {
		case <-p.stopChan:
			log.Debug("worker shutting down")
			return
		default:
		}

		result, err := p.redis.BLPop(context.Background(), p.cfg.PopTimeout, queue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Warn("failed to pop job", "error", err)
				select {
				case <-p.stopChan:
				case <-time.After(time.Second):
				}
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		p.handle(queue, result[1])
	}
}

// handle runs one raw envelope through decode, lock, dispatch and
// retry bookkeeping.
func (p *Pool) handle(queue, raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	var job models.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		p.log.Error("dropping undecodable job", "queue", queue, "error", err)
		p.metrics.JobsProcessedTotal.WithLabelValues(queue, "invalid").Inc()
		return
	}
	log := p.log.With("job_id", job.ID, "type", job.Type, "attempt", job.Attempt)

	lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
	locked, err := p.redis.SetNX(ctx, lockKey, "1", jobLockTTL).Result()
	if err != nil {
		log.Warn("failed to acquire job lock, requeueing", "error", err)
		p.requeue(&job, time.Second)
		return
	}
	if !locked {
		log.Debug("job is being processed elsewhere, skipping")
		return
	}

	start := time.Now()
	err = p.dispatch(ctx, &job)
	p.metrics.JobDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())

	// Released before any retry is scheduled so the retry is never skipped.
	p.redis.Del(context.Background(), lockKey)

	switch {
	case err == nil:
		p.metrics.JobsProcessedTotal.WithLabelValues(queue, "completed").Inc()
		log.Info("job completed", "duration", time.Since(start).String())
	case errors.Is(err, models.ErrInvalidJob):
		p.metrics.JobsProcessedTotal.WithLabelValues(queue, "invalid").Inc()
		log.Error("dropping invalid job", "error", err)
	default:
		p.handleFailure(queue, &job, err)
	}
}

func (p *Pool) dispatch(ctx context.Context, job *models.Job) error {
	switch job.Type {
	case models.JobTypeHydratePlan:
		var payload models.HydratePlanPayload
		if err := decodePayload(job, &payload); err != nil {
			return err
		}
		return p.hydrator.Hydrate(ctx, payload)

	case models.JobTypeWeeklyReport:
		var payload models.WeeklyReportPayload
		if err := decodePayload(job, &payload); err != nil {
			return err
		}
		_, err := p.reports.Generate(ctx, payload)
		return err

	case models.JobTypeNotification:
		var payload models.NotificationPayload
		if err := decodePayload(job, &payload); err != nil {
			return err
		}
		return p.notifier.Dispatch(ctx, payload)

	default:
		return fmt.Errorf("%w: unknown job type %q", models.ErrInvalidJob, job.Type)
	}
}

func decodePayload(job *models.Job, payload models.JobPayload) error {
	if err := json.Unmarshal(job.Payload, payload); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidJob, err)
	}
	return payload.Validate()
}

func (p *Pool) handleFailure(queue string, job *models.Job, err error) {
	job.Attempt++
	log := p.log.With("job_id", job.ID, "type", job.Type, "attempt", job.Attempt)

	if job.Attempt < p.cfg.MaxAttempts {
		backoff := p.backoff(job.Attempt)
		log.Warn("job failed, retrying", "error", err, "backoff", backoff.String())
		p.metrics.JobsProcessedTotal.WithLabelValues(queue, "retried").Inc()
		p.requeue(job, backoff)
		return
	}

	log.Error("job failed permanently", "error", err)
	p.metrics.JobsProcessedTotal.WithLabelValues(queue, "failed").Inc()
}

// requeue pushes job back onto its queue after delay.
func (p *Pool) requeue(job *models.Job, delay time.Duration) {
	p.retryWG.Add(1)
	var t *time.Timer
	push := func() {
		defer p.retryWG.Done()
		p.retryMu.Lock()
		delete(p.retryTmrs, t)
		p.retryMu.Unlock()
		if err := p.queue.push(context.Background(), job); err != nil {
			p.log.Error("failed to requeue job", "job_id", job.ID, "error", err)
		}
	}

	p.retryMu.Lock()
	t = time.AfterFunc(delay, push)
	p.retryTmrs[t] = job
	p.retryMu.Unlock()
}
