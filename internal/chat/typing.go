package chat

import (
	"context"

	"github.com/npezzotti/go-chat-gateway/internal/types"
)

// Typing relays typing state to the rest of a room. Nothing is stored.
type Typing struct {
	*publisher
	registry *Registry
}

func (t *Typing) Start(ctx context.Context, room, connId string) error {
	return t.set(ctx, room, connId, true)
}

func (t *Typing) Stop(ctx context.Context, room, connId string) error {
	return t.set(ctx, room, connId, false)
}

func (t *Typing) set(ctx context.Context, room, connId string, typing bool) error {
	sess, ok := t.registry.Get(connId)
	if !ok {
		return ErrNotAuthenticated
	}

	if room == "" {
		room = sess.Room
	}
	if room != sess.Room {
		return ErrNotInRoom
	}

	return t.publish(ctx, types.Event{
		Type:           types.EventTyping,
		Room:           room,
		SkipConnection: connId,
		Typing: &types.TypingState{
			Room:        room,
			DisplayName: sess.DisplayName,
			IsTyping:    typing,
		},
	})
}
