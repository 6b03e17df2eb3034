package chat

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/npezzotti/go-chat-gateway/internal/store"
	"github.com/npezzotti/go-chat-gateway/internal/types"
)

// Presence tracks room membership. The member set lives only in the store;
// no membership is ever assumed locally.
type Presence struct {
	*publisher
	store store.Store
	log   *log.Logger
}

// ValidateRoom trims and checks a room name.
func ValidateRoom(room string) (string, error) {
	room = strings.TrimSpace(room)
	if room == "" || utf8.RuneCountInString(room) > MaxRoomNameLength {
		return "", ErrInvalidInput
	}
	return room, nil
}

// ValidateJoin trims and checks a display name and room name.
func ValidateJoin(displayName, room string) (string, string, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || utf8.RuneCountInString(displayName) > MaxDisplayNameLength {
		return "", "", ErrInvalidInput
	}

	room, err := ValidateRoom(room)
	if err != nil {
		return "", "", err
	}

	return displayName, room, nil
}

// CreateRoom registers room so it is listed before anyone joins it.
func (p *Presence) CreateRoom(ctx context.Context, room string) error {
	room, err := ValidateRoom(room)
	if err != nil {
		return err
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if err := p.store.AddRoom(ctx, room); err != nil {
		return storeErr(err)
	}
	return nil
}

// Join adds connId to room and announces it. If the announcement cannot be
// published the membership change is undone so the caller can retry.
func (p *Presence) Join(ctx context.Context, room, connId, displayName string) (int64, error) {
	sctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, count, err := p.store.AddMember(sctx, room, connId)
	if err != nil {
		return 0, storeErr(err)
	}

	err = p.publish(ctx, types.Event{
		Type: types.EventPresence,
		Room: room,
		Presence: &types.Presence{
			Action:      types.PresenceJoined,
			Room:        room,
			DisplayName: displayName,
			MemberCount: count,
			Timestamp:   types.Now(),
		},
	})
	if err != nil {
		rctx, rcancel := p.withTimeout(context.WithoutCancel(ctx))
		defer rcancel()
		if _, _, rerr := p.store.RemoveMember(rctx, room, connId); rerr != nil {
			p.log.Printf("rollback join of %q in room %q: %v", connId, room, rerr)
		}
		return 0, err
	}

	return count, nil
}

// Leave removes connId from room. Leaving a room connId is not a member of
// changes nothing and announces nothing.
func (p *Presence) Leave(ctx context.Context, room, connId, displayName string) (int64, error) {
	sctx, cancel := p.withTimeout(ctx)
	defer cancel()

	removed, count, err := p.store.RemoveMember(sctx, room, connId)
	if err != nil {
		return 0, storeErr(err)
	}
	if !removed {
		return count, nil
	}

	err = p.publish(ctx, types.Event{
		Type: types.EventPresence,
		Room: room,
		Presence: &types.Presence{
			Action:      types.PresenceLeft,
			Room:        room,
			DisplayName: displayName,
			MemberCount: count,
			Timestamp:   types.Now(),
		},
	})
	return count, err
}

func (p *Presence) ListRooms(ctx context.Context) ([]types.RoomInfo, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	rooms, err := p.store.ListRooms(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return rooms, nil
}

func (p *Presence) MemberCount(ctx context.Context, room string) (int64, error) {
	room, err := ValidateRoom(room)
	if err != nil {
		return 0, err
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	n, err := p.store.MemberCount(ctx, room)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}
