package scheduler

import (
	"context"
	"fmt"
	"time"

	"capdev_portal/platform/config"
	"capdev_portal/platform/logger"

	"github.com/hibiken/asynq"
)

const defaultDigestCron = "0 8 * * 1"

// Periodic registers recurring tasks with an asynq scheduler.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   asynqLogger{log},
	})

	task, err := NewWeeklyDigestTask(WeeklyDigestPayload{})
	if err != nil {
		return nil, err
	}

	cronSpec := cfg.GetWeeklyDigestCron()
	if cronSpec == "" {
		cronSpec = defaultDigestCron
	}
	if _, err := s.Register(cronSpec, task, asynq.Queue(queueName(cfg)), asynq.MaxRetry(1)); err != nil {
		return nil, fmt.Errorf("register weekly digest %q: %w", cronSpec, err)
	}

	return &Periodic{scheduler: s, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	if err := p.scheduler.Start(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}
