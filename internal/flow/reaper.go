// Package flow provides the idle reaper for abandoned conversations.
package flow

import (
	"log/slog"
	"time"

	"github.com/CampusPe/ResumeBot/internal/store"
)

// Reaper configuration defaults.
const (
	// DefaultIdleTimeout is how long a conversation may sit without inbound
	// activity before the reaper removes it, regardless of step.
	DefaultIdleTimeout = time.Hour
	// ReaperCronSpec runs the sweep at the top of every hour.
	ReaperCronSpec = "0 * * * *"
)

// CronScheduler registers recurring jobs by cron expression.
type CronScheduler interface {
	AddJob(expr string, task func()) error
}

// Reaper periodically deletes conversations inactive beyond the idle timeout.
// Pure housekeeping: it only mutates the store and cancels orphaned timers.
type Reaper struct {
	store       store.Store
	timer       Timer
	idleTimeout time.Duration
}

// NewReaper creates a reaper over the given store. The timer is consulted so
// pending grace deletions for swept conversations are cancelled too.
func NewReaper(st store.Store, timer Timer, idleTimeout time.Duration) *Reaper {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Reaper{store: st, timer: timer, idleTimeout: idleTimeout}
}

// Start registers the hourly sweep with the scheduler.
func (r *Reaper) Start(sched CronScheduler) error {
	slog.Info("Reaper scheduling hourly sweep", "idleTimeout", r.idleTimeout)
	return sched.AddJob(ReaperCronSpec, func() {
		r.RunOnce()
	})
}

// RunOnce performs a single sweep pass and returns the number of
// conversations removed.
func (r *Reaper) RunOnce() int {
	cutoff := time.Now().Add(-r.idleTimeout)
	swept, err := r.store.SweepConversations(cutoff)
	if err != nil {
		slog.Error("Reaper sweep failed", "error", err)
		return 0
	}
	for _, phone := range swept {
		if r.timer != nil {
			r.timer.Cancel(phone)
		}
	}
	if len(swept) > 0 {
		slog.Info("Reaper removed idle conversations", "count", len(swept))
	} else {
		slog.Debug("Reaper sweep found nothing to remove")
	}
	return len(swept)
}
