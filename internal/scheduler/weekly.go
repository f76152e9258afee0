package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"mindsphere-backend/internal/logger"
)

const runTimeout = 2 * time.Minute

// ReportEnqueuer enqueues one weekly report job per recently active user.
type ReportEnqueuer interface {
	EnqueuePreviousWeek(ctx context.Context) (int, error)
}

// WeeklyReports triggers report generation on a cron schedule.
type WeeklyReports struct {
	scheduler *gocron.Scheduler
	reports   ReportEnqueuer
	spec      string
	log       *logger.Logger
}

func NewWeeklyReports(reports ReportEnqueuer, spec string, loc *time.Location, log *logger.Logger) *WeeklyReports {
	if loc == nil {
		loc = time.UTC
	}
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	return &WeeklyReports{
		scheduler: s,
		reports:   reports,
		spec:      spec,
		log:       log,
	}
}

// Start registers the cron job and runs the scheduler in the background.
func (w *WeeklyReports) Start() error {
	job, err := w.scheduler.Cron(w.spec).Do(w.run)
	if err != nil {
		return fmt.Errorf("invalid weekly report schedule %q: %w", w.spec, err)
	}
	w.scheduler.StartAsync()
	w.log.Info("weekly report scheduler started", "cron", w.spec, "next_run", job.NextRun())
	return nil
}

func (w *WeeklyReports) Stop() {
	w.scheduler.Stop()
}

func (w *WeeklyReports) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := w.reports.EnqueuePreviousWeek(ctx)
	if err != nil {
		w.log.Error("weekly report run failed", "error", err)
		return
	}
	w.log.Info("weekly reports enqueued", "users", n)
}
