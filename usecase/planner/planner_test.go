package planner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/repository"
)

// stubStore hands the test direct control of snapshot delivery: each Listen
// call is recorded and the test pushes snapshots through push().
type stubStore struct {
	mu      sync.Mutex
	subs    []*stubSub
	created []domain.Task
	toggled map[string]bool
	deleted []string
}

type stubSub struct {
	mu        sync.Mutex
	fn        repository.SnapshotFunc
	cancelled bool
}

func (s *stubSub) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

func (s *stubSub) push(tasks []domain.Task) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	fn(tasks)
}

func newStubStore() *stubStore {
	return &stubStore{toggled: map[string]bool{}}
}

func (s *stubStore) Listen(ctx context.Context, userID string, fn repository.SnapshotFunc) (repository.Subscription, error) {
	sub := &stubSub{fn: fn}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return sub, nil
}

func (s *stubStore) Create(ctx context.Context, userID string, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, *task)
	return nil
}

func (s *stubStore) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggled[id] = completed
	return nil
}

func (s *stubStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubStore) sub(i int) *stubSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[i]
}

func (s *stubStore) subCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

type stubMigrator struct {
	calls chan string
}

func newStubMigrator() *stubMigrator {
	return &stubMigrator{calls: make(chan string, 8)}
}

func (m *stubMigrator) Migrate(ctx context.Context, userID string) error {
	m.calls <- userID
	return nil
}

func newTestPlanner(t *testing.T) (*Planner, *stubStore, *stubMigrator) {
	t.Helper()
	store := newStubStore()
	migrator := newStubMigrator()
	return New(store, migrator, nil), store, migrator
}

func dueIn(days int) string {
	return time.Now().AddDate(0, 0, days).Format(domain.DueDateLayout)
}

func TestSetIdentityMirrorsSnapshots(t *testing.T) {
	p, store, migrator := newTestPlanner(t)
	p.SetIdentity(context.Background(), "user-1")

	select {
	case uid := <-migrator.calls:
		if uid != "user-1" {
			t.Fatalf("migrated user = %q, want user-1", uid)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("migration never started")
	}

	store.sub(0).push([]domain.Task{{ID: "a", Title: "one"}, {ID: "b", Title: "two"}})
	got := p.Tasks()
	if len(got) != 2 || got[0].ID != "a" {
		t.Fatalf("mirror = %+v, want snapshot of two tasks", got)
	}
	if p.UserID() != "user-1" {
		t.Errorf("UserID = %q, want user-1", p.UserID())
	}
}

func TestSignOutClearsStateAndCancels(t *testing.T) {
	p, store, _ := newTestPlanner(t)
	p.SetIdentity(context.Background(), "user-1")
	store.sub(0).push([]domain.Task{{ID: "a", Title: "one"}})

	p.SetIdentity(context.Background(), "")

	if got := p.Tasks(); len(got) != 0 {
		t.Errorf("mirror holds %d tasks after sign-out, want 0", len(got))
	}
	if p.UserID() != "" {
		t.Errorf("UserID = %q after sign-out, want empty", p.UserID())
	}
	if !store.sub(0).cancelled {
		t.Error("subscription not cancelled on sign-out")
	}
}

func TestStaleSnapshotIsDropped(t *testing.T) {
	p, store, _ := newTestPlanner(t)
	p.SetIdentity(context.Background(), "user-1")
	old := store.sub(0)

	p.SetIdentity(context.Background(), "user-2")
	if store.subCount() != 2 {
		t.Fatalf("subscription count = %d, want 2", store.subCount())
	}
	if !old.cancelled {
		t.Error("old subscription not cancelled on identity switch")
	}

	// A late delivery from the superseded stream must not land.
	old.push([]domain.Task{{ID: "stale", Title: "from the old user"}})
	if got := p.Tasks(); len(got) != 0 {
		t.Errorf("stale snapshot applied: %+v", got)
	}

	store.sub(1).push([]domain.Task{{ID: "fresh", Title: "current"}})
	got := p.Tasks()
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("mirror = %+v, want the fresh snapshot", got)
	}
}

func TestAddTaskValidation(t *testing.T) {
	p, store, _ := newTestPlanner(t)

	if _, err := p.AddTask(context.Background(), NewTaskInput{Title: "x"}); err != domain.ErrSignedOut {
		t.Fatalf("signed-out AddTask error = %v, want ErrSignedOut", err)
	}

	p.SetIdentity(context.Background(), "user-1")

	if _, err := p.AddTask(context.Background(), NewTaskInput{Title: "   "}); err != domain.ErrEmptyTitle {
		t.Errorf("blank title error = %v, want ErrEmptyTitle", err)
	}
	if _, err := p.AddTask(context.Background(), NewTaskInput{Title: "x", DueDate: "garbage"}); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("malformed date error = %v, want INVALID domain error", err)
	}

	task, err := p.AddTask(context.Background(), NewTaskInput{Title: "  Essay draft  ", Course: "ENGL 2000"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if task.Title != "Essay draft" {
		t.Errorf("title = %q, want trimmed", task.Title)
	}
	if task.DueDate != domain.Today() {
		t.Errorf("dueDate = %q, want today's default", task.DueDate)
	}
	if task.Priority != domain.PriorityMedium {
		t.Errorf("priority = %q, want default Medium", task.Priority)
	}
	if task.ID == "" || !strings.Contains(task.ID, "-") {
		t.Errorf("id = %q, want timestamp-random form", task.ID)
	}
	if len(store.created) != 1 {
		t.Fatalf("store recorded %d creates, want 1", len(store.created))
	}

	// The write is remote-only: the mirror stays empty until a snapshot lands.
	if got := p.Tasks(); len(got) != 0 {
		t.Errorf("mirror updated before snapshot delivery: %+v", got)
	}
}

func TestToggleComplete(t *testing.T) {
	p, store, _ := newTestPlanner(t)
	p.SetIdentity(context.Background(), "user-1")
	store.sub(0).push([]domain.Task{
		{ID: "a", Title: "open"},
		{ID: "b", Title: "done", Completed: true},
	})

	if err := p.ToggleComplete(context.Background(), "a"); err != nil {
		t.Fatalf("ToggleComplete(a): %v", err)
	}
	if got := store.toggled["a"]; got != true {
		t.Errorf("toggle wrote completed=%v for a, want true", got)
	}

	if err := p.ToggleComplete(context.Background(), "b"); err != nil {
		t.Fatalf("ToggleComplete(b): %v", err)
	}
	if got := store.toggled["b"]; got != false {
		t.Errorf("toggle wrote completed=%v for b, want false", got)
	}

	if err := p.ToggleComplete(context.Background(), "missing"); err != domain.ErrTaskNotFound {
		t.Errorf("unknown id error = %v, want ErrTaskNotFound", err)
	}
}

func TestRemoveTask(t *testing.T) {
	p, store, _ := newTestPlanner(t)

	if err := p.RemoveTask(context.Background(), "a"); err != domain.ErrSignedOut {
		t.Fatalf("signed-out RemoveTask error = %v, want ErrSignedOut", err)
	}

	p.SetIdentity(context.Background(), "user-1")
	if err := p.RemoveTask(context.Background(), "a"); err != nil {
		t.Fatalf("RemoveTask: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "a" {
		t.Errorf("deletes = %v, want [a]", store.deleted)
	}
}

func TestStatsAndFilters(t *testing.T) {
	p, store, _ := newTestPlanner(t)
	p.SetIdentity(context.Background(), "user-1")
	store.sub(0).push([]domain.Task{
		{ID: "overdue", Title: "late", DueDate: dueIn(-2)},
		{ID: "today", Title: "now", DueDate: dueIn(0)},
		{ID: "soon", Title: "this week", DueDate: dueIn(5)},
		{ID: "later", Title: "next month", DueDate: dueIn(20)},
		{ID: "done", Title: "finished", DueDate: dueIn(1), Completed: true},
	})

	s := p.Stats()
	if s.Total != 5 || s.Completed != 1 {
		t.Errorf("totals = %d/%d completed, want 5/1", s.Total, s.Completed)
	}
	if s.DueToday != 1 {
		t.Errorf("DueToday = %d, want 1", s.DueToday)
	}
	if s.NextSeven != 2 {
		t.Errorf("NextSeven = %d, want 2 (today and soon)", s.NextSeven)
	}
	if s.Overdue != 1 {
		t.Errorf("Overdue = %d, want 1", s.Overdue)
	}

	ids := func(tasks []domain.Task) []string {
		out := make([]string, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, t.ID)
		}
		return out
	}

	tests := []struct {
		filter string
		want   []string
	}{
		{FilterAll, []string{"overdue", "today", "done", "soon", "later"}},
		{FilterToday, []string{"today"}},
		{FilterNextSeven, []string{"today", "soon"}},
		{FilterOverdue, []string{"overdue"}},
		{FilterCompleted, []string{"done"}},
		{"unknown", []string{"overdue", "today", "done", "soon", "later"}},
	}
	for _, tt := range tests {
		got := ids(p.Filter(tt.filter))
		if len(got) != len(tt.want) {
			t.Errorf("Filter(%q) = %v, want %v", tt.filter, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Filter(%q) = %v, want %v", tt.filter, got, tt.want)
				break
			}
		}
	}
}

func TestDueSoonSkipsCompletedAndCaps(t *testing.T) {
	p, store, _ := newTestPlanner(t)
	p.SetIdentity(context.Background(), "user-1")

	snapshot := []domain.Task{
		{ID: "done", DueDate: dueIn(0), Completed: true},
	}
	for i := 1; i <= 10; i++ {
		snapshot = append(snapshot, domain.Task{ID: dueIn(i), DueDate: dueIn(i)})
	}
	store.sub(0).push(snapshot)

	got := p.DueSoon(3)
	if len(got) != 3 {
		t.Fatalf("DueSoon(3) returned %d tasks, want 3", len(got))
	}
	if got[0].DueDate != dueIn(1) || got[2].DueDate != dueIn(3) {
		t.Errorf("DueSoon order wrong: %v, %v", got[0].DueDate, got[2].DueDate)
	}

	if got := p.DueSoon(0); len(got) != 8 {
		t.Errorf("DueSoon(0) returned %d tasks, want default cap 8", len(got))
	}
}

func TestMonthBuckets(t *testing.T) {
	p, store, _ := newTestPlanner(t)
	p.SetIdentity(context.Background(), "user-1")
	store.sub(0).push([]domain.Task{
		{ID: "a", DueDate: "2025-06-10", Completed: true},
		{ID: "b", DueDate: "2025-06-10"},
		{ID: "c", DueDate: "2025-06-21"},
		{ID: "d", DueDate: "2025-07-01"},
		{ID: "e", DueDate: "bad-date"},
	})

	buckets := p.Month(2025, time.June)
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2: %v", len(buckets), buckets)
	}
	day := buckets["2025-06-10"]
	if len(day) != 2 {
		t.Fatalf("2025-06-10 holds %d tasks, want 2", len(day))
	}
	if day[0].ID != "b" {
		t.Errorf("incomplete task should sort first in a bucket, got %q", day[0].ID)
	}
	if len(buckets["2025-06-21"]) != 1 {
		t.Errorf("2025-06-21 bucket wrong: %v", buckets["2025-06-21"])
	}
}
