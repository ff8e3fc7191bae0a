package repository

import (
	"context"

	"github.com/miniplanner/backend/domain"
)

// Subscription is the handle returned by a live task listen. Cancel stops
// snapshot delivery and releases server-side resources; cancelling more than
// once is safe.
type Subscription interface {
	Cancel()
}

// SnapshotFunc receives the full current task list, most recent first. The
// initial load counts as the first invocation.
type SnapshotFunc func(tasks []domain.Task)

// TaskStore is the remote, per-user task collection. It is eventually
// consistent and push-based: a write becomes visible to a reader only when
// the subscription delivers the next snapshot.
type TaskStore interface {
	Listen(ctx context.Context, userID string, fn SnapshotFunc) (Subscription, error)
	// Create is an idempotent upsert keyed by the task's own id.
	Create(ctx context.Context, userID string, task *domain.Task) error
	// SetCompleted updates exactly one field and never clobbers the rest.
	SetCompleted(ctx context.Context, userID, id string, completed bool) error
	// Delete removes the document; a missing id is a no-op.
	Delete(ctx context.Context, userID, id string) error
}

// TaskDocuments is the low-level document access the remote store composes
// with a change notifier.
type TaskDocuments interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Task, error)
	Upsert(ctx context.Context, userID string, task *domain.Task) error
	SetCompleted(ctx context.Context, userID, id string, completed bool) error
	Delete(ctx context.Context, userID, id string) error
}

// TaskSignal delivers change notifications for one user's collection.
type TaskSignal interface {
	// Changes yields one value per change notification. The channel closes
	// when the signal is closed or its connection is lost.
	Changes() <-chan struct{}
	Close() error
}

// TaskNotifier fans out change signals between store replicas.
type TaskNotifier interface {
	Publish(ctx context.Context, userID string) error
	Subscribe(ctx context.Context, userID string) (TaskSignal, error)
}
