package bus

import (
	"context"

	"github.com/npezzotti/go-chat-gateway/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockBus struct {
	mock.Mock
}

func (m *MockBus) Publish(ctx context.Context, ev types.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
func (m *MockBus) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	args := m.Called(ctx, h)
	if sub, ok := args.Get(0).(Subscription); ok {
		return sub, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockBus) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockBus) Close() error {
	args := m.Called()
	return args.Error(0)
}
