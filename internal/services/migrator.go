package services

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/repository"
)

// Migrator drains the pre-authentication local task slot into the remote
// store, once per user. The marker records the last user whose migration was
// confirmed: it is set only after every remote write succeeded, so a partial
// failure leaves it unset and the next sign-in retries. Retries cannot
// duplicate tasks because the remote create is an upsert keyed by task id.
type Migrator struct {
	local  repository.LocalStore
	store  repository.TaskStore
	logger *zap.Logger
}

func NewMigrator(local repository.LocalStore, store repository.TaskStore, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		local:  local,
		store:  store,
		logger: logger,
	}
}

// Migrate transfers the local task list to userID's remote collection and
// empties the local slot. Calling it again for the same user is a no-op.
func (m *Migrator) Migrate(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrInvalidPayload
	}
	if m.local.MigratedUser() == userID {
		return nil
	}

	tasks := m.local.LoadTasks()
	if len(tasks) == 0 {
		return m.local.SetMigratedUser(userID)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			return m.store.Create(gctx, userID, &task)
		})
	}
	if err := g.Wait(); err != nil {
		// Marker stays unset on purpose: the next sign-in re-runs the whole
		// transfer and the upserts absorb whatever already landed.
		m.logger.Error("local task migration failed",
			zap.String("user_id", userID),
			zap.Int("tasks", len(tasks)),
			zap.Error(err))
		return err
	}

	// Empty the slot but keep the key.
	if err := m.local.SaveTasks([]domain.Task{}); err != nil {
		m.logger.Warn("failed to clear local tasks after migration", zap.Error(err))
	}

	m.logger.Info("local tasks migrated",
		zap.String("user_id", userID),
		zap.Int("tasks", len(tasks)))
	return m.local.SetMigratedUser(userID)
}
