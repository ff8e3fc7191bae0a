package remote

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/repository"
)

// Store implements the per-user remote task collection by composing document
// storage with a change-signal fan-out. Every successful write publishes a
// signal; every live subscription re-reads the full snapshot when a signal
// arrives. There is no optimistic client-side merging: a write becomes
// visible to readers only through the next delivered snapshot.
type Store struct {
	docs       repository.TaskDocuments
	notifier   repository.TaskNotifier
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewStore(docs repository.TaskDocuments, notifier repository.TaskNotifier, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		docs:       docs,
		notifier:   notifier,
		logger:     logger,
		retryDelay: 2 * time.Second,
	}
}

// Listen opens a live subscription to all tasks under userID, most recent
// first. The callback runs on a single goroutine, so snapshots arrive as one
// ordered stream; the initial load counts as the first invocation.
func (s *Store) Listen(ctx context.Context, userID string, fn repository.SnapshotFunc) (repository.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	signal, err := s.notifier.Subscribe(subCtx, userID)
	if err != nil {
		cancel()
		return nil, err
	}

	go s.run(subCtx, userID, fn, signal)

	return &subscription{cancel: cancel}, nil
}

// Create upserts the task keyed by its own id. Re-creating an existing id
// overwrites the document instead of duplicating it.
func (s *Store) Create(ctx context.Context, userID string, task *domain.Task) error {
	if err := s.docs.Upsert(ctx, userID, task); err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}

// SetCompleted writes only the completed flag, leaving every other field
// untouched server-side.
func (s *Store) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	if err := s.docs.SetCompleted(ctx, userID, id, completed); err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}

// Delete removes the document. A missing id is a no-op, not an error.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	if err := s.docs.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}

func (s *Store) publish(ctx context.Context, userID string) {
	if err := s.notifier.Publish(ctx, userID); err != nil {
		// The write itself landed; subscribers catch up on the next signal.
		s.logger.Warn("task change publish failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (s *Store) run(ctx context.Context, userID string, fn repository.SnapshotFunc, signal repository.TaskSignal) {
	defer func() {
		if err := signal.Close(); err != nil {
			s.logger.Debug("task signal close failed", zap.Error(err))
		}
	}()

	s.deliver(ctx, userID, fn)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signal.Changes():
			if !ok {
				// Lost the notification stream; resubscribe with a short
				// backoff instead of stalling silently.
				replacement, err := s.resubscribe(ctx, userID)
				if err != nil {
					return
				}
				signal = replacement
				s.deliver(ctx, userID, fn)
				continue
			}
			s.deliver(ctx, userID, fn)
		}
	}
}

func (s *Store) deliver(ctx context.Context, userID string, fn repository.SnapshotFunc) {
	tasks, err := s.docs.ListByUser(ctx, userID)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("task snapshot load failed",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		return
	}
	fn(tasks)
}

func (s *Store) resubscribe(ctx context.Context, userID string) (repository.TaskSignal, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}

		signal, err := s.notifier.Subscribe(ctx, userID)
		if err == nil {
			s.logger.Info("task subscription recovered", zap.String("user_id", userID))
			return signal, nil
		}
		s.logger.Warn("task resubscribe failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

type subscription struct {
	once   sync.Once
	cancel context.CancelFunc
}

// Cancel stops snapshot delivery and releases the underlying pub/sub
// resources. Cancelling more than once is safe.
func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}

var _ repository.TaskStore = (*Store)(nil)
