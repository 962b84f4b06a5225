package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Checker is what the scheduler runs on every tick.
type Checker interface {
	Check(ctx context.Context) error
}

// Scheduler periodically checks an agent.
type Scheduler struct {
	scheduler *gocron.Scheduler
	checker   Checker
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler. An interval of zero schedules nothing, which
// matches an agent whose schedule is "never".
func New(interval, timeout time.Duration, checker Checker, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	// Overlapping runs of the same agent are skipped, not queued.
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		checker:   checker,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the periodic check and starts the underlying scheduler.
// The first check runs one interval after Start.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduler: no check interval configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler: started", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and cancels any future checks.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Debug("scheduler: running check")
	if err := s.checker.Check(ctx); err != nil {
		s.logger.Warn("scheduler: check failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduler: check completed")
}
