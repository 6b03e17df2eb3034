package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/npezzotti/go-chat-gateway/internal/types"
	"github.com/redis/go-redis/v9"
)

type RedisBus struct {
	client  *redis.Client
	channel string
	log     *log.Logger
}

func NewRedisBus(client *redis.Client, channel string, logger *log.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}

	return &RedisBus{
		client:  client,
		channel: channel,
		log:     logger,
	}
}

func (b *RedisBus) Publish(ctx context.Context, ev types.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
}

func (s *redisSubscription) Unsubscribe() error {
	err := s.pubsub.Close()
	<-s.done
	return err
}

func (b *RedisBus) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)

	// wait for the subscription to be confirmed so no event published
	// after Subscribe returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %q: %w", b.channel, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		for msg := range pubsub.Channel() {
			var ev types.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Printf("bus: discarding malformed event: %v", err)
				continue
			}
			h(ev)
		}
	}()

	return sub, nil
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close is a no-op, the redis client is owned by the caller.
func (b *RedisBus) Close() error {
	return nil
}
