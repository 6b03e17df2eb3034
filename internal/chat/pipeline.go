package chat

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/npezzotti/go-chat-gateway/internal/store"
	"github.com/npezzotti/go-chat-gateway/internal/types"
)

type Pipeline struct {
	*publisher
	store     store.Store
	registry  *Registry
	maxLength int
}

// Send stores a message from connId's session and then publishes it. A
// message is never published before it is in the room log.
func (p *Pipeline) Send(ctx context.Context, room, connId, body string) (*types.Message, error) {
	sess, ok := p.registry.Get(connId)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	if room == "" {
		room = sess.Room
	}
	if room != sess.Room {
		return nil, ErrNotInRoom
	}

	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > p.maxLength {
		return nil, ErrMessageTooLong
	}

	msg := types.Message{
		Id:        uuid.NewString(),
		SessionId: sess.Id,
		Username:  sess.DisplayName,
		Room:      room,
		Body:      body,
		Timestamp: types.Now(),
	}

	sctx, cancel := p.withTimeout(ctx)
	defer cancel()
	if err := p.store.AppendMessage(sctx, msg); err != nil {
		return nil, storeErr(err)
	}

	if err := p.publish(ctx, types.Event{
		Type:    types.EventMessage,
		Room:    room,
		Message: &msg,
	}); err != nil {
		return &msg, err
	}

	return &msg, nil
}

// History returns the retained messages for room, oldest first.
func (p *Pipeline) History(ctx context.Context, room string) ([]types.Message, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	msgs, err := p.store.ListMessages(ctx, room)
	if err != nil {
		return nil, storeErr(err)
	}

	// the log is newest first; messages appended concurrently by instances
	// with skewed clocks can land out of timestamp order
	slices.Reverse(msgs)
	slices.SortStableFunc(msgs, func(a, b types.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	return msgs, nil
}
