package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/internal/infrastructure/localstore"
	"github.com/miniplanner/backend/repository"
)

type fakeSubscription struct{}

func (fakeSubscription) Cancel() {}

// fakeTaskStore records upserts by (user, id) and can be told to fail a
// specific task id.
type fakeTaskStore struct {
	mu      sync.Mutex
	docs    map[string]map[string]domain.Task
	creates int
	failID  string
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{docs: map[string]map[string]domain.Task{}}
}

func (f *fakeTaskStore) Listen(ctx context.Context, userID string, fn repository.SnapshotFunc) (repository.Subscription, error) {
	return fakeSubscription{}, nil
}

func (f *fakeTaskStore) Create(ctx context.Context, userID string, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failID != "" && task.ID == f.failID {
		return errors.New("simulated write failure")
	}
	f.creates++
	if f.docs[userID] == nil {
		f.docs[userID] = map[string]domain.Task{}
	}
	f.docs[userID][task.ID] = *task
	return nil
}

func (f *fakeTaskStore) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	return nil
}

func (f *fakeTaskStore) Delete(ctx context.Context, userID, id string) error {
	return nil
}

func (f *fakeTaskStore) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs[userID])
}

func openLocal(t *testing.T) *localstore.Store {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "planner.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedTasks(t *testing.T, local *localstore.Store, n int) []domain.Task {
	t.Helper()
	tasks := make([]domain.Task, 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, domain.Task{
			ID:       string(rune('a' + i)),
			Title:    "seed",
			DueDate:  "2025-05-01",
			Priority: domain.PriorityMedium,
		})
	}
	if err := local.SaveTasks(tasks); err != nil {
		t.Fatalf("seed local tasks: %v", err)
	}
	return tasks
}

func TestMigrateTransfersAndMarks(t *testing.T) {
	local := openLocal(t)
	store := newFakeTaskStore()
	seedTasks(t, local, 3)

	m := NewMigrator(local, store, nil)
	if err := m.Migrate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	if got := store.count("user-1"); got != 3 {
		t.Errorf("remote holds %d tasks, want 3", got)
	}
	if got := local.LoadTasks(); len(got) != 0 {
		t.Errorf("local slot holds %d tasks after migration, want 0", len(got))
	}
	if got := local.MigratedUser(); got != "user-1" {
		t.Errorf("marker = %q, want user-1", got)
	}
}

func TestMigrateIsIdempotentPerUser(t *testing.T) {
	local := openLocal(t)
	store := newFakeTaskStore()
	seedTasks(t, local, 2)

	m := NewMigrator(local, store, nil)
	if err := m.Migrate(context.Background(), "user-1"); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	before := store.creates

	// Local slot refilled by another tab; the marker still gates the transfer.
	seedTasks(t, local, 2)
	if err := m.Migrate(context.Background(), "user-1"); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if store.creates != before {
		t.Errorf("second call performed %d extra creates, want 0", store.creates-before)
	}
}

func TestMigrateEmptyLocalJustMarks(t *testing.T) {
	local := openLocal(t)
	store := newFakeTaskStore()

	m := NewMigrator(local, store, nil)
	if err := m.Migrate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if store.creates != 0 {
		t.Errorf("empty local produced %d creates, want 0", store.creates)
	}
	if got := local.MigratedUser(); got != "user-1" {
		t.Errorf("marker = %q, want user-1", got)
	}
}

func TestMigratePartialFailureLeavesMarkerUnset(t *testing.T) {
	local := openLocal(t)
	store := newFakeTaskStore()
	store.failID = "b"
	tasks := seedTasks(t, local, 3)

	m := NewMigrator(local, store, nil)
	if err := m.Migrate(context.Background(), "user-1"); err == nil {
		t.Fatal("Migrate succeeded despite a failing write")
	}

	if got := local.MigratedUser(); got != "" {
		t.Errorf("marker = %q after failure, want unset", got)
	}
	if got := local.LoadTasks(); len(got) != len(tasks) {
		t.Errorf("local slot holds %d tasks after failure, want %d", len(got), len(tasks))
	}

	// Retry after the failure clears: upserts absorb the duplicates.
	store.mu.Lock()
	store.failID = ""
	store.mu.Unlock()
	if err := m.Migrate(context.Background(), "user-1"); err != nil {
		t.Fatalf("retry Migrate: %v", err)
	}
	if got := store.count("user-1"); got != 3 {
		t.Errorf("remote holds %d tasks after retry, want 3", got)
	}
	if got := local.MigratedUser(); got != "user-1" {
		t.Errorf("marker = %q after retry, want user-1", got)
	}
}

func TestMigrateDifferentUserRunsAgain(t *testing.T) {
	local := openLocal(t)
	store := newFakeTaskStore()
	seedTasks(t, local, 1)

	m := NewMigrator(local, store, nil)
	if err := m.Migrate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Migrate user-1: %v", err)
	}

	seedTasks(t, local, 1)
	if err := m.Migrate(context.Background(), "user-2"); err != nil {
		t.Fatalf("Migrate user-2: %v", err)
	}
	if got := store.count("user-2"); got != 1 {
		t.Errorf("user-2 holds %d tasks, want 1", got)
	}
	if got := local.MigratedUser(); got != "user-2" {
		t.Errorf("marker = %q, want user-2", got)
	}
}

func TestMigrateRejectsEmptyUser(t *testing.T) {
	local := openLocal(t)
	m := NewMigrator(local, newFakeTaskStore(), nil)
	if err := m.Migrate(context.Background(), ""); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("Migrate(\"\") error = %v, want INVALID domain error", err)
	}
}
