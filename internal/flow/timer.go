// Package flow provides timer implementations for delayed conversation cleanup.
package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CampusPe/ResumeBot/internal/models"
)

// Timer schedules cancellable delayed functions keyed by conversation phone
// number, so a restarted flow can cancel a pending grace-period deletion
// before it clobbers the new conversation.
type Timer interface {
	ScheduleAfter(key string, delay time.Duration, fn func()) error
	Cancel(key string) bool
	Stop()
}

// timerEntry tracks information about a scheduled timer
type timerEntry struct {
	timer       *time.Timer
	scheduledAt time.Time
	expiresAt   time.Time
	description string
}

// CleanupTimer implements Timer using the standard time package. Scheduling a
// key that already has a pending timer replaces it.
type CleanupTimer struct {
	timers map[string]*timerEntry
	mu     sync.RWMutex
}

// NewCleanupTimer creates a new CleanupTimer.
func NewCleanupTimer() *CleanupTimer {
	slog.Debug("Creating CleanupTimer")
	return &CleanupTimer{
		timers: make(map[string]*timerEntry),
	}
}

// ScheduleAfter schedules fn to run after delay under the given key.
func (t *CleanupTimer) ScheduleAfter(key string, delay time.Duration, fn func()) error {
	if key == "" {
		return fmt.Errorf("timer key cannot be empty")
	}

	t.mu.Lock()
	if prev, exists := t.timers[key]; exists {
		prev.timer.Stop()
		slog.Debug("CleanupTimer replacing pending timer", "key", key)
	}

	now := time.Now()
	timer := time.AfterFunc(delay, func() {
		slog.Debug("CleanupTimer executing scheduled function", "key", key)
		fn()
		t.mu.Lock()
		delete(t.timers, key)
		t.mu.Unlock()
	})
	t.timers[key] = &timerEntry{
		timer:       timer,
		scheduledAt: now,
		expiresAt:   now.Add(delay),
		description: fmt.Sprintf("Cleanup scheduled for %v", delay),
	}
	t.mu.Unlock()

	slog.Debug("CleanupTimer ScheduleAfter succeeded", "key", key, "delay", delay)
	return nil
}

// Cancel stops the pending timer for a key. Returns true if one was pending.
func (t *CleanupTimer) Cancel(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.timers[key]
	if !exists {
		slog.Debug("CleanupTimer Cancel: timer not found", "key", key)
		return false
	}
	entry.timer.Stop()
	delete(t.timers, key)
	slog.Debug("CleanupTimer Cancel succeeded", "key", key)
	return true
}

// Stop cancels all pending timers.
func (t *CleanupTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	slog.Debug("CleanupTimer stopping all timers", "count", len(t.timers))
	for _, entry := range t.timers {
		entry.timer.Stop()
	}
	t.timers = make(map[string]*timerEntry)
}

// ListActive returns information about all pending timers.
func (t *CleanupTimer) ListActive() []models.TimerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]models.TimerInfo, 0, len(t.timers))
	now := time.Now()
	for key, entry := range t.timers {
		remaining := entry.expiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		result = append(result, models.TimerInfo{
			ID:          key,
			ScheduledAt: entry.scheduledAt,
			ExpiresAt:   entry.expiresAt,
			Remaining:   remaining.String(),
			Description: entry.description,
		})
	}
	return result
}
