package store

import (
	"context"

	"github.com/npezzotti/go-chat-gateway/internal/types"
)

// Store is the shared state every gateway instance coordinates through.
// Each mutating method is a single atomic operation on the backing store.
type Store interface {
	Ping(ctx context.Context) error
	AddRoom(ctx context.Context, room string) error
	// AddMember registers the room and adds id to its member set. added
	// reports whether id was not already a member.
	AddMember(ctx context.Context, room, id string) (added bool, count int64, err error)
	// RemoveMember removes id from the room's member set. removed reports
	// whether id was a member.
	RemoveMember(ctx context.Context, room, id string) (removed bool, count int64, err error)
	MemberCount(ctx context.Context, room string) (int64, error)
	// AppendMessage pushes msg onto the room log and trims the log to its
	// capacity in the same transaction.
	AppendMessage(ctx context.Context, msg types.Message) error
	// ListMessages returns the room log newest first.
	ListMessages(ctx context.Context, room string) ([]types.Message, error)
	ListRooms(ctx context.Context) ([]types.RoomInfo, error)
	Close() error
}
