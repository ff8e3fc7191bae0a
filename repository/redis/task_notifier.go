package redis

import (
	"context"
	"fmt"

	redislib "github.com/redis/go-redis/v9"

	"github.com/miniplanner/backend/repository"
)

type taskNotifier struct {
	client *redislib.Client
}

// NewTaskNotifier creates a Redis pub/sub fan-out for per-user task change
// signals. One channel per user keeps a subscriber from ever seeing another
// user's activity.
func NewTaskNotifier(client *redislib.Client) repository.TaskNotifier {
	return &taskNotifier{client: client}
}

func (n *taskNotifier) Publish(ctx context.Context, userID string) error {
	return n.client.Publish(ctx, channelFor(userID), "changed").Err()
}

func (n *taskNotifier) Subscribe(ctx context.Context, userID string) (repository.TaskSignal, error) {
	pubsub := n.client.Subscribe(ctx, channelFor(userID))

	// Force the subscription onto the wire before returning, so a Publish
	// issued right after Subscribe cannot be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	signal := &taskSignal{
		pubsub:  pubsub,
		changes: make(chan struct{}, 1),
	}
	go signal.pump()
	return signal, nil
}

type taskSignal struct {
	pubsub  *redislib.PubSub
	changes chan struct{}
}

func (s *taskSignal) Changes() <-chan struct{} {
	return s.changes
}

func (s *taskSignal) Close() error {
	return s.pubsub.Close()
}

// pump collapses bursts of notifications into a single pending signal. The
// subscriber re-reads the whole snapshot anyway, so coalescing loses nothing.
func (s *taskSignal) pump() {
	defer close(s.changes)
	for range s.pubsub.Channel() {
		select {
		case s.changes <- struct{}{}:
		default:
		}
	}
}

func channelFor(userID string) string {
	return fmt.Sprintf("planner:tasks:%s", userID)
}
