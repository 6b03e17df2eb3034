package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/npezzotti/go-chat-gateway/internal/types"
)

const (
	DefaultSubject = "chat.events"

	defaultFlushTimeout = 2 * time.Second
)

type NatsBus struct {
	conn    *nats.Conn
	subject string
	log     *log.Logger
}

// NewNatsConn connects to the NATS server at url, retrying for a bounded
// period after transient disconnects.
func NewNatsConn(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return nc, nil
}

func NewNatsBus(nc *nats.Conn, subject string, logger *log.Logger) *NatsBus {
	if subject == "" {
		subject = DefaultSubject
	}

	return &NatsBus{
		conn:    nc,
		subject: subject,
		log:     logger,
	}
}

func (b *NatsBus) Publish(ctx context.Context, ev types.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	// Publish only buffers locally, flush so a dead server is reported
	// to the caller.
	if err := b.flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}

func (b *NatsBus) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		var ev types.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			b.log.Printf("bus: discarding malformed event: %v", err)
			return
		}
		h(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %q: %w", b.subject, err)
	}

	if err := b.flush(ctx); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("subscribe %q: %w", b.subject, err)
	}

	return sub, nil
}

// flush round-trips to the server. FlushWithContext refuses contexts
// without a deadline so one is applied when missing.
func (b *NatsBus) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFlushTimeout)
		defer cancel()
	}
	return b.conn.FlushWithContext(ctx)
}

func (b *NatsBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return nats.ErrConnectionClosed
	}
	return b.flush(ctx)
}

func (b *NatsBus) Close() error {
	return b.conn.Drain()
}
