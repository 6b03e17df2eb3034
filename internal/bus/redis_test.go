package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/npezzotti/go-chat-gateway/internal/testutil"
	"github.com/npezzotti/go-chat-gateway/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan types.Event, n int) []types.Event {
	t.Helper()

	var got []types.Event
	for len(got) < n {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout: received %d of %d events", len(got), n)
		}
	}
	return got
}

func TestRedisBus_deliversToEverySubscriber(t *testing.T) {
	ctx := context.Background()
	_, client := testutil.TestRedis(t)
	logger := testutil.TestLogger(t)

	// two instances sharing one redis
	gw1 := NewRedisBus(client, "", logger)
	gw2 := NewRedisBus(client, "", logger)

	ch1 := make(chan types.Event, 16)
	ch2 := make(chan types.Event, 16)

	sub1, err := gw1.Subscribe(ctx, func(ev types.Event) { ch1 <- ev })
	require.NoError(t, err)
	defer sub1.Unsubscribe()
	sub2, err := gw2.Subscribe(ctx, func(ev types.Event) { ch2 <- ev })
	require.NoError(t, err)
	defer sub2.Unsubscribe()

	ev := types.Event{
		Type:   types.EventMessage,
		Room:   "general",
		Origin: "gw-1",
		Message: &types.Message{
			Id:   "m1",
			Room: "general",
			Body: "hi",
		},
	}
	require.NoError(t, gw1.Publish(ctx, ev))

	got1 := collect(t, ch1, 1)
	got2 := collect(t, ch2, 1)
	assert.Equal(t, ev, got1[0], "expected publisher to receive its own event")
	assert.Equal(t, ev, got2[0], "expected remote instance to receive the event")
}

func TestRedisBus_preservesPublishOrder(t *testing.T) {
	ctx := context.Background()
	_, client := testutil.TestRedis(t)
	b := NewRedisBus(client, "test:events", testutil.TestLogger(t))

	ch := make(chan types.Event, 64)
	sub, err := b.Subscribe(ctx, func(ev types.Event) { ch <- ev })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	for i := 0; i < 20; i++ {
		require.NoError(t, b.Publish(ctx, types.Event{
			Type:    types.EventMessage,
			Room:    "general",
			Message: &types.Message{Id: fmt.Sprintf("m%d", i)},
		}))
	}

	got := collect(t, ch, 20)
	for i, ev := range got {
		assert.Equal(t, fmt.Sprintf("m%d", i), ev.Message.Id, "expected events in publish order")
	}
}

func TestRedisBus_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	_, client := testutil.TestRedis(t)
	b := NewRedisBus(client, "", testutil.TestLogger(t))

	ch := make(chan types.Event, 1)
	sub, err := b.Subscribe(ctx, func(ev types.Event) { ch <- ev })
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())

	require.NoError(t, b.Publish(ctx, types.Event{Type: types.EventTyping, Room: "general"}))
	select {
	case ev := <-ch:
		t.Errorf("expected no delivery after unsubscribe, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisBus_unavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	mr, client := testutil.TestRedis(t)
	b := NewRedisBus(client, "", testutil.TestLogger(t))
	mr.Close()

	assert.Error(t, b.Publish(ctx, types.Event{Room: "general"}))
	_, err := b.Subscribe(ctx, func(types.Event) {})
	assert.Error(t, err)
	assert.Error(t, b.Ping(ctx))
	assert.NoError(t, b.Close(), "expected close to leave the shared client alone")
}
