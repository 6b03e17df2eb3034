package bus

import (
	"context"
	"testing"
	"time"

	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/npezzotti/go-chat-gateway/internal/testutil"
	"github.com/npezzotti/go-chat-gateway/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNatsBus(t *testing.T, url string) *NatsBus {
	t.Helper()

	nc, err := NewNatsConn(url, "test")
	require.NoError(t, err, "expected to connect to nats")
	t.Cleanup(nc.Close)

	return NewNatsBus(nc, "", testutil.TestLogger(t))
}

func TestNatsBus_deliversToEverySubscriber(t *testing.T) {
	srv := natstest.RunRandClientPortServer()
	defer srv.Shutdown()

	ctx := context.Background()
	gw1 := newTestNatsBus(t, srv.ClientURL())
	gw2 := newTestNatsBus(t, srv.ClientURL())

	ch1 := make(chan types.Event, 16)
	ch2 := make(chan types.Event, 16)
	sub1, err := gw1.Subscribe(ctx, func(ev types.Event) { ch1 <- ev })
	require.NoError(t, err)
	defer sub1.Unsubscribe()
	sub2, err := gw2.Subscribe(ctx, func(ev types.Event) { ch2 <- ev })
	require.NoError(t, err)
	defer sub2.Unsubscribe()

	ev := types.Event{
		Type:   types.EventPresence,
		Room:   "general",
		Origin: "gw-2",
		Presence: &types.Presence{
			Action:      types.PresenceJoined,
			Room:        "general",
			DisplayName: "bob",
			MemberCount: 2,
			Timestamp:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, gw2.Publish(ctx, ev))

	assert.Equal(t, ev, collect(t, ch1, 1)[0], "expected remote instance to receive the event")
	assert.Equal(t, ev, collect(t, ch2, 1)[0], "expected publisher to receive its own event")
}

func TestNatsBus_Ping(t *testing.T) {
	srv := natstest.RunRandClientPortServer()

	b := newTestNatsBus(t, srv.ClientURL())
	assert.NoError(t, b.Ping(context.Background()))

	srv.Shutdown()
	b.conn.Close()
	assert.Error(t, b.Ping(context.Background()), "expected ping on a closed connection to fail")
}

func TestNewNatsConn_unreachable(t *testing.T) {
	_, err := NewNatsConn("nats://127.0.0.1:1", "test")
	assert.Error(t, err, "expected connect to fail without a server")
}
