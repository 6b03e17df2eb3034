// Package bus fans room events out to every gateway instance.
//
// Every subscriber, including the one attached to the publishing instance,
// receives every published event in publish order.
package bus

import (
	"context"

	"github.com/npezzotti/go-chat-gateway/internal/types"
)

const DefaultChannel = "chat:events"

type Handler func(ev types.Event)

type Subscription interface {
	Unsubscribe() error
}

type Bus interface {
	Publish(ctx context.Context, ev types.Event) error
	// Subscribe registers h for every event published on the bus. It returns
	// once the subscription is active. h is invoked from a single goroutine.
	Subscribe(ctx context.Context, h Handler) (Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}
