package planner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/repository"
)

// Migrator abstracts the local-to-remote transfer so the planner stays
// storage-agnostic.
type Migrator interface {
	Migrate(ctx context.Context, userID string) error
}

// NewTaskInput is what a caller supplies when adding a task; everything else
// (id, timestamps, completion) is assigned here.
type NewTaskInput struct {
	Title    string          `json:"title"`
	Course   string          `json:"course"`
	DueDate  string          `json:"dueDate"`
	Priority domain.Priority `json:"priority"`
}

// Stats are the dashboard counters derived from the in-memory mirror.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	DueToday  int `json:"dueToday"`
	NextSeven int `json:"nextSevenDays"`
	Overdue   int `json:"overdue"`
}

// Assignment list filters.
const (
	FilterAll       = "All"
	FilterToday     = "Today"
	FilterNextSeven = "Next 7 Days"
	FilterOverdue   = "Overdue"
	FilterCompleted = "Completed"
)

// Planner owns the task state for one identity slot. While an identity is
// present its in-memory list is a mirror of the last snapshot delivered by
// the remote subscription; there is no optimistic write buffer, so the effect
// of a write shows up only when the following snapshot lands. The planner is
// the single writer of its state; views only ever receive copies.
type Planner struct {
	store    repository.TaskStore
	migrator Migrator
	logger   *zap.Logger

	mu     sync.RWMutex
	userID string
	gen    uint64
	tasks  []domain.Task
	sub    repository.Subscription
}

func New(store repository.TaskStore, migrator Migrator, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		store:    store,
		migrator: migrator,
		logger:   logger,
	}
}

// SetIdentity switches the planner to a new identity. Any open subscription
// is cancelled first, unconditionally, so a stale stream can never overwrite
// fresh state. An empty userID means signed out: state clears and no
// subscription opens. Otherwise the local-task migration is kicked off in the
// background (its failure is logged, never blocking) and a live subscription
// starts mirroring snapshots. ctx bounds the subscription's lifetime.
func (p *Planner) SetIdentity(ctx context.Context, userID string) {
	p.mu.Lock()
	if p.sub != nil {
		p.sub.Cancel()
		p.sub = nil
	}
	p.gen++
	gen := p.gen
	p.userID = userID
	p.tasks = nil
	p.mu.Unlock()

	if userID == "" {
		return
	}

	go func() {
		if err := p.migrator.Migrate(ctx, userID); err != nil {
			p.logger.Error("task migration failed",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}()

	sub, err := p.store.Listen(ctx, userID, func(tasks []domain.Task) {
		p.apply(gen, tasks)
	})
	if err != nil {
		p.logger.Error("task subscription failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}

	p.mu.Lock()
	if p.gen != gen {
		// Identity changed again while we were connecting.
		p.mu.Unlock()
		sub.Cancel()
		return
	}
	p.sub = sub
	p.mu.Unlock()
}

// Close cancels the subscription and clears state.
func (p *Planner) Close() {
	p.SetIdentity(context.Background(), "")
}

// apply mirrors one snapshot as a total replacement, in arrival order.
// Snapshots from a superseded subscription are dropped.
func (p *Planner) apply(gen uint64, tasks []domain.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return
	}
	p.tasks = tasks
}

// UserID returns the current identity, or "" when signed out.
func (p *Planner) UserID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userID
}

// Tasks returns a copy of the current mirror, most recent first.
func (p *Planner) Tasks() []domain.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Task, len(p.tasks))
	copy(out, p.tasks)
	return out
}

// AddTask validates and writes a new task through to the remote store. It
// returns once the write is acknowledged; the mirror reflects it when the
// next snapshot arrives.
func (p *Planner) AddTask(ctx context.Context, input NewTaskInput) (*domain.Task, error) {
	userID := p.UserID()
	if userID == "" {
		return nil, domain.ErrSignedOut
	}

	task := &domain.Task{
		ID:        newTaskID(),
		Title:     input.Title,
		Course:    input.Course,
		DueDate:   input.DueDate,
		Priority:  input.Priority,
		Completed: false,
		CreatedAt: time.Now().UnixMilli(),
	}
	task.Normalize()
	if task.Title == "" {
		return nil, domain.ErrEmptyTitle
	}
	if task.DueDate == "" {
		task.DueDate = domain.Today()
	}
	if _, err := domain.ParseDueDate(task.DueDate); err != nil {
		return nil, err
	}

	if err := p.store.Create(ctx, userID, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ToggleComplete writes the inverted completed flag through to the remote
// store. The id must exist in the current mirror.
func (p *Planner) ToggleComplete(ctx context.Context, id string) error {
	p.mu.RLock()
	userID := p.userID
	var current *domain.Task
	for i := range p.tasks {
		if p.tasks[i].ID == id {
			current = &p.tasks[i]
			break
		}
	}
	var completed bool
	if current != nil {
		completed = current.Completed
	}
	p.mu.RUnlock()

	if userID == "" {
		return domain.ErrSignedOut
	}
	if current == nil {
		return domain.ErrTaskNotFound
	}
	return p.store.SetCompleted(ctx, userID, id, !completed)
}

// RemoveTask deletes the task through to the remote store.
func (p *Planner) RemoveTask(ctx context.Context, id string) error {
	userID := p.UserID()
	if userID == "" {
		return domain.ErrSignedOut
	}
	return p.store.Delete(ctx, userID, id)
}

// Stats derives the dashboard counters from the mirror.
func (p *Planner) Stats() Stats {
	tasks := p.Tasks()
	now := time.Now()
	today := now.Format(domain.DueDateLayout)

	var s Stats
	s.Total = len(tasks)
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
			continue
		}
		d, err := domain.DaysUntilAt(now, t.DueDate)
		if err != nil {
			continue
		}
		if t.DueDate == today {
			s.DueToday++
		}
		if d >= 0 && d <= 7 {
			s.NextSeven++
		}
		if d < 0 {
			s.Overdue++
		}
	}
	return s
}

// DueSoon returns the n incomplete tasks with the nearest due dates.
func (p *Planner) DueSoon(n int) []domain.Task {
	if n <= 0 {
		n = 8
	}
	tasks := p.Tasks()
	out := tasks[:0]
	for _, t := range tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	sortByDueDate(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Filter returns the tasks matching one of the assignment filters, nearest
// due date first. Unknown filters behave like FilterAll.
func (p *Planner) Filter(kind string) []domain.Task {
	tasks := p.Tasks()
	now := time.Now()
	today := now.Format(domain.DueDateLayout)

	out := tasks[:0]
	for _, t := range tasks {
		d, err := domain.DaysUntilAt(now, t.DueDate)
		if err != nil && kind != FilterAll && kind != FilterCompleted {
			continue
		}
		switch kind {
		case FilterCompleted:
			if !t.Completed {
				continue
			}
		case FilterToday:
			if t.Completed || t.DueDate != today {
				continue
			}
		case FilterNextSeven:
			if t.Completed || d < 0 || d > 7 {
				continue
			}
		case FilterOverdue:
			if t.Completed || d >= 0 {
				continue
			}
		}
		out = append(out, t)
	}
	sortByDueDate(out)
	return out
}

// Month buckets the mirror's tasks by due date for one calendar month.
// Within a bucket, incomplete tasks come first.
func (p *Planner) Month(year int, month time.Month) map[string][]domain.Task {
	prefix := fmt.Sprintf("%04d-%02d-", year, int(month))
	buckets := make(map[string][]domain.Task)
	for _, t := range p.Tasks() {
		if len(t.DueDate) != len(domain.DueDateLayout) || t.DueDate[:8] != prefix {
			continue
		}
		buckets[t.DueDate] = append(buckets[t.DueDate], t)
	}
	for date, list := range buckets {
		sort.SliceStable(list, func(i, j int) bool {
			return !list[i].Completed && list[j].Completed
		})
		buckets[date] = list
	}
	return buckets
}

func sortByDueDate(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].DueDate < tasks[j].DueDate
	})
}

// newTaskID combines a millisecond timestamp with a random component, so ids
// sort roughly by creation time and cannot collide within a session.
func newTaskID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
}
