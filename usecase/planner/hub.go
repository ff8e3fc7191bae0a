package planner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/repository"
)

// Hub keeps one live planner per authenticated user for the HTTP surface.
// Planners attach lazily on first use and detach on sign-out, so the number
// of open remote subscriptions matches the number of active users.
type Hub struct {
	ctx      context.Context
	store    repository.TaskStore
	migrator Migrator
	logger   *zap.Logger

	mu       sync.Mutex
	planners map[string]*Planner
}

func NewHub(ctx context.Context, store repository.TaskStore, migrator Migrator, logger *zap.Logger) *Hub {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		ctx:      ctx,
		store:    store,
		migrator: migrator,
		logger:   logger,
		planners: make(map[string]*Planner),
	}
}

// Attach returns the planner mirroring userID's tasks, creating and
// subscribing it on first use.
func (h *Hub) Attach(userID string) *Planner {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.planners[userID]; ok {
		return p
	}
	p := New(h.store, h.migrator, h.logger)
	p.SetIdentity(h.ctx, userID)
	h.planners[userID] = p
	h.logger.Debug("planner attached", zap.String("user_id", userID))
	return p
}

// Detach closes the user's planner, cancelling its subscription.
func (h *Hub) Detach(userID string) {
	h.mu.Lock()
	p, ok := h.planners[userID]
	delete(h.planners, userID)
	h.mu.Unlock()
	if ok {
		p.Close()
		h.logger.Debug("planner detached", zap.String("user_id", userID))
	}
}

// Close detaches every planner.
func (h *Hub) Close() {
	h.mu.Lock()
	planners := h.planners
	h.planners = make(map[string]*Planner)
	h.mu.Unlock()
	for _, p := range planners {
		p.Close()
	}
}

// DueDigest collects, per attached user, the incomplete tasks due within
// daysAhead days. Feeds the daily reminder digest.
func (h *Hub) DueDigest(daysAhead int) map[string][]domain.Task {
	h.mu.Lock()
	snapshot := make(map[string]*Planner, len(h.planners))
	for id, p := range h.planners {
		snapshot[id] = p
	}
	h.mu.Unlock()

	now := time.Now()
	digest := make(map[string][]domain.Task)
	for userID, p := range snapshot {
		var due []domain.Task
		for _, t := range p.Tasks() {
			if t.Completed {
				continue
			}
			d, err := domain.DaysUntilAt(now, t.DueDate)
			if err != nil || d < 0 || d > daysAhead {
				continue
			}
			due = append(due, t)
		}
		sortByDueDate(due)
		if len(due) > 0 {
			digest[userID] = due
		}
	}
	return digest
}
