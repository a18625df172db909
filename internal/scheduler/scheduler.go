// Package scheduler provides periodic job scheduling for CopilotRelay.
//
// It allows background jobs (such as the idle-user reminder sweep) to be scheduled using cron
// expressions or descriptors like "@every 60m".
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler. Panicking jobs are recovered and a job
// that is still running when its next tick arrives is skipped.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) plus @every/@hourly descriptors
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Start()
	slog.Debug("Scheduler.NewScheduler: cron started")
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	id, err := s.cron.AddFunc(expr, task)
	if err != nil {
		slog.Error("Scheduler.AddJob: invalid schedule", "expr", expr, "error", err)
		return err
	}
	slog.Info("Scheduler.AddJob: job scheduled", "expr", expr, "entry_id", id)
	return nil
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Debug("Scheduler.Stop: cron stopped")
}
