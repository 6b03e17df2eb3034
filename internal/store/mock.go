package store

import (
	"context"

	"github.com/npezzotti/go-chat-gateway/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockStore) AddRoom(ctx context.Context, room string) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}
func (m *MockStore) AddMember(ctx context.Context, room, id string) (bool, int64, error) {
	args := m.Called(ctx, room, id)
	return args.Bool(0), args.Get(1).(int64), args.Error(2)
}
func (m *MockStore) RemoveMember(ctx context.Context, room, id string) (bool, int64, error) {
	args := m.Called(ctx, room, id)
	return args.Bool(0), args.Get(1).(int64), args.Error(2)
}
func (m *MockStore) MemberCount(ctx context.Context, room string) (int64, error) {
	args := m.Called(ctx, room)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockStore) AppendMessage(ctx context.Context, msg types.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
func (m *MockStore) ListMessages(ctx context.Context, room string) ([]types.Message, error) {
	args := m.Called(ctx, room)
	if msgs, ok := args.Get(0).([]types.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockStore) ListRooms(ctx context.Context) ([]types.RoomInfo, error) {
	args := m.Called(ctx)
	if rooms, ok := args.Get(0).([]types.RoomInfo); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
