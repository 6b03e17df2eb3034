// Package chat implements room membership, message persistence and typing
// state on top of a shared store and an event bus. Nothing here holds
// state that must be consistent across instances except through those two.
package chat

import (
	"context"
	"log"
	"time"

	"github.com/npezzotti/go-chat-gateway/internal/bus"
	"github.com/npezzotti/go-chat-gateway/internal/store"
	"github.com/npezzotti/go-chat-gateway/internal/types"
)

const (
	DefaultOpTimeout        = 3 * time.Second
	DefaultMaxMessageLength = 1000
	MaxDisplayNameLength    = 20
	MaxRoomNameLength       = 30
)

type Options struct {
	// Origin identifies this instance on published events.
	Origin           string
	OpTimeout        time.Duration
	MaxMessageLength int
}

// Service bundles the managers that share one store, bus and registry.
type Service struct {
	Registry *Registry
	Presence *Presence
	Pipeline *Pipeline
	Typing   *Typing
}

func NewService(logger *log.Logger, st store.Store, b bus.Bus, opts Options) *Service {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = DefaultMaxMessageLength
	}

	reg := NewRegistry()
	pub := &publisher{bus: b, origin: opts.Origin, timeout: opts.OpTimeout}

	return &Service{
		Registry: reg,
		Presence: &Presence{
			publisher: pub,
			store:     st,
			log:       logger,
		},
		Pipeline: &Pipeline{
			publisher: pub,
			store:     st,
			registry:  reg,
			maxLength: opts.MaxMessageLength,
		},
		Typing: &Typing{
			publisher: pub,
			registry:  reg,
		},
	}
}

type publisher struct {
	bus     bus.Bus
	origin  string
	timeout time.Duration
}

func (p *publisher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

func (p *publisher) publish(ctx context.Context, ev types.Event) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	ev.Origin = p.origin
	if err := p.bus.Publish(ctx, ev); err != nil {
		return busErr(err)
	}
	return nil
}
