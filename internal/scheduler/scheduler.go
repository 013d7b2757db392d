package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"storeops/internal/models"
)

// Config controls the background deletion queue.
type Config struct {
	Enabled       bool          `yaml:"enabled"`
	PollSchedule  string        `yaml:"poll_schedule"`  // cron spec, e.g. "@every 30s"
	BatchSize     int           `yaml:"batch_size"`     // jobs per poll, 0 = until empty
	PruneSchedule string        `yaml:"prune_schedule"` // cron spec, e.g. "0 3 * * *"
	Retention     time.Duration `yaml:"retention"`
	Lease         time.Duration `yaml:"lease"` // processing jobs older than this are reclaimed
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		PollSchedule:  "@every 30s",
		BatchSize:     10,
		PruneSchedule: "0 3 * * *",
		Retention:     30 * 24 * time.Hour,
		Lease:         models.JobLease,
	}
}

// Scheduler runs the deletion worker and queue housekeeping on cron schedules.
type Scheduler struct {
	cron      *cron.Cron
	worker    *Worker
	queue     *Queue
	config    Config
	logger    *zap.Logger
	isRunning bool
}

// New creates a scheduler. Nothing runs until Start.
func New(worker *Worker, queue *Queue, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		worker: worker,
		queue:  queue,
		config: cfg,
		logger: logger,
	}
}

// Start registers the jobs and starts the cron runner
func (s *Scheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Info("Deletion queue is disabled in configuration")
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.PollSchedule, func() {
		if n := s.worker.Drain(context.Background(), s.config.BatchSize); n > 0 {
			s.logger.Info("Processed deletion jobs", zap.Int("count", n))
		}
	}); err != nil {
		return err
	}

	if s.config.PruneSchedule != "" && s.config.Retention > 0 {
		if _, err := s.cron.AddFunc(s.config.PruneSchedule, func() {
			n, err := s.queue.Prune(context.Background(), s.config.Retention)
			if err != nil {
				s.logger.Error("Failed to prune deletion jobs", zap.Error(err))
				return
			}
			s.logger.Info("Pruned deletion jobs", zap.Int64("count", n))
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.Info("Scheduler started",
		zap.String("poll_schedule", s.config.PollSchedule),
		zap.String("prune_schedule", s.config.PruneSchedule),
	)
	return nil
}

// Stop stops the cron runner and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	if !s.isRunning {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
}

// RunNow drains the queue immediately (for manual trigger)
func (s *Scheduler) RunNow(ctx context.Context) int {
	return s.worker.Drain(ctx, 0)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
