package scheduler

import "github.com/robfig/cron/v3"

// Accessors for the external scheduler_test package, which cannot import
// this package internally without an import cycle through config.

func (s *Scheduler) IsRunning() bool { return s.isRunning }

func (s *Scheduler) Cron() *cron.Cron { return s.cron }
