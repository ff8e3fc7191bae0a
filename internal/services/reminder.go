package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/repository"
)

// DigestSource supplies the tasks worth reminding about, grouped by user.
type DigestSource interface {
	DueDigest(daysAhead int) map[string][]domain.Task
}

// Reminder schedules the daily "what's due" digest at the locally configured
// reminder time. Delivery is a structured log line per user; pushing beyond
// that is left to an external notifier.
type Reminder struct {
	local  repository.LocalStore
	source DigestSource
	logger *zap.Logger
	cron   *cron.Cron

	mu    sync.Mutex
	entry cron.EntryID
}

func NewReminder(local repository.LocalStore, source DigestSource, logger *zap.Logger) *Reminder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reminder{
		local:  local,
		source: source,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start schedules the digest job and launches the cron scheduler.
func (r *Reminder) Start() {
	if r == nil || r.cron == nil {
		return
	}
	r.Refresh()
	r.cron.Start()
	r.logger.Info("reminder scheduler started")
}

// Stop gracefully stops the scheduler.
func (r *Reminder) Stop(ctx context.Context) {
	if r == nil || r.cron == nil {
		return
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	r.logger.Info("reminder scheduler stopped")
}

// Refresh re-reads the reminder time from local settings and reschedules the
// digest job. Settings updates call this so a new time takes effect without a
// restart.
func (r *Reminder) Refresh() {
	settings := r.local.LoadSettings()
	spec, err := cronSpec(settings.ReminderTime)
	if err != nil {
		r.logger.Warn("invalid reminder time, keeping previous schedule",
			zap.String("reminder_time", settings.ReminderTime),
			zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entry != 0 {
		r.cron.Remove(r.entry)
	}
	entry, err := r.cron.AddFunc(spec, r.fire)
	if err != nil {
		r.logger.Error("failed to schedule reminder digest", zap.Error(err))
		return
	}
	r.entry = entry
	r.logger.Info("reminder digest scheduled", zap.String("at", settings.ReminderTime))
}

func (r *Reminder) fire() {
	settings := r.local.LoadSettings()
	if !settings.NotificationsEnabled {
		return
	}
	for userID, tasks := range r.source.DueDigest(settings.RemindDaysAhead) {
		if len(tasks) == 0 {
			continue
		}
		titles := make([]string, 0, len(tasks))
		for _, t := range tasks {
			titles = append(titles, t.Title)
		}
		r.logger.Info("daily digest",
			zap.String("user_id", userID),
			zap.Int("days_ahead", settings.RemindDaysAhead),
			zap.Strings("due", titles))
	}
}

// cronSpec converts an HH:MM reminder time into a daily cron expression.
func cronSpec(reminderTime string) (string, error) {
	parts := strings.Split(reminderTime, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("expected HH:MM, got %q", reminderTime)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", reminderTime)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", reminderTime)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
