package settings

import (
	"go.uber.org/zap"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/repository"
)

// ReminderScheduler is notified after a settings update so a changed reminder
// time takes effect without a restart.
type ReminderScheduler interface {
	Refresh()
}

// UseCase reads and replaces the local-only settings slot. Settings never
// sync to the remote store.
type UseCase struct {
	local     repository.LocalStore
	scheduler ReminderScheduler
	logger    *zap.Logger
}

func New(local repository.LocalStore, scheduler ReminderScheduler, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		local:     local,
		scheduler: scheduler,
		logger:    logger,
	}
}

func (uc *UseCase) Get() domain.Settings {
	return uc.local.LoadSettings()
}

// Update replaces the stored settings wholesale after normalizing them.
func (uc *UseCase) Update(s domain.Settings) (domain.Settings, error) {
	s.Normalize()
	if err := uc.local.SaveSettings(s); err != nil {
		return domain.Settings{}, err
	}
	if uc.scheduler != nil {
		uc.scheduler.Refresh()
	}
	uc.logger.Info("settings updated",
		zap.Bool("notifications_enabled", s.NotificationsEnabled),
		zap.String("reminder_time", s.ReminderTime),
		zap.Int("remind_days_ahead", s.RemindDaysAhead))
	return s, nil
}
