// Package scheduler runs ResumeBot's recurring housekeeping on cron
// schedules. Its one production job is the reaper's hourly sweep of idle
// conversations, registered against the standard 5-field cron format.
package scheduler

import (
	"github.com/robfig/cron/v3"
)

// Scheduler owns the cron runner shared by ResumeBot's background jobs.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts the scheduler. A panicking job is
// recovered and logged, so a bad sweep does not stop later ones.
func NewScheduler() *Scheduler {
	// 5-field expressions only (min, hour, dom, month, dow), matching
	// ReaperCronSpec.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob registers task to run on the given cron expression, for example the
// reaper's hourly sweep. Invalid expressions are rejected.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
