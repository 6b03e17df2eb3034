package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/go-chat-gateway/internal/bus"
	"github.com/npezzotti/go-chat-gateway/internal/store"
	"github.com/npezzotti/go-chat-gateway/internal/testutil"
	"github.com/npezzotti/go-chat-gateway/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// recorder collects every event an instance receives from the bus.
type recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recorder) handle(ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Event(nil), r.events...)
}

// waitFor polls until n events have been recorded.
func (r *recorder) waitFor(t *testing.T, n int) []types.Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if evs := r.snapshot(); len(evs) >= n {
			return evs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout: recorded %d of %d events", len(r.snapshot()), n)
	return nil
}

// newTestInstance builds a service backed by client, as one gateway
// instance would, and records the events it receives.
func newTestInstance(t *testing.T, client *redis.Client, origin string) (*Service, *recorder) {
	t.Helper()

	logger := testutil.TestLogger(t)
	b := bus.NewRedisBus(client, "", logger)
	rec := &recorder{}
	sub, err := b.Subscribe(context.Background(), rec.handle)
	require.NoError(t, err)
	t.Cleanup(func() { sub.Unsubscribe() })

	svc := NewService(logger, store.NewRedisStore(client, "", 0), b, Options{Origin: origin})
	return svc, rec
}

func newMockService(t *testing.T, st *store.MockStore, b *bus.MockBus) *Service {
	return NewService(testutil.TestLogger(t), st, b, Options{Origin: "gw-test", OpTimeout: time.Second})
}
