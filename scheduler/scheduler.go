package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one recurring background task. Jobs receive a bounded context and
// report their own errors; the scheduler only logs.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron       *cron.Cron
	logger     *slog.Logger
	jobTimeout time.Duration
}

func New(logger *slog.Logger, jobTimeout time.Duration) *Scheduler {
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}
	return &Scheduler{
		cron:       cron.New(),
		logger:     logger,
		jobTimeout: jobTimeout,
	}
}

// Add registers a job under a cron spec. Registration errors are returned so
// a bad spec fails startup instead of silently never running.
func (s *Scheduler) Add(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		started := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
			return
		}
		s.logger.Info("scheduled job finished", "job", name, "duration", time.Since(started))
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
