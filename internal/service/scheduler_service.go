package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/config"
	"github.com/popeskul/waba-messenger/internal/scheduler"
)

// schedulerService runs the periodic conversation reconciliation pass.
type schedulerService struct {
	scheduler *scheduler.Scheduler
}

func NewSchedulerService(cfg *config.Config, inbox InboxService, logger *zap.Logger) SchedulerService {
	interval := time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute

	task := func(ctx context.Context) error {
		return inbox.ReconcileTotals(ctx)
	}

	return &schedulerService{
		scheduler: scheduler.NewScheduler(logger, interval, task),
	}
}

func (s *schedulerService) Start() error {
	return s.scheduler.Start(context.Background())
}

func (s *schedulerService) Stop() error {
	return s.scheduler.Stop()
}

func (s *schedulerService) IsRunning() bool {
	return s.scheduler.IsRunning()
}
