package chat

import (
	"sync"

	"github.com/google/uuid"
	"github.com/npezzotti/go-chat-gateway/internal/types"
)

// Registry maps live connections on this instance to their sessions.
// Sessions are never shared with other instances.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]types.Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]types.Session),
	}
}

func (r *Registry) Create(connId, displayName, room string) types.Session {
	s := types.Session{
		Id:           uuid.NewString(),
		ConnectionId: connId,
		DisplayName:  displayName,
		Room:         room,
		JoinedAt:     types.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connId] = s

	return s
}

func (r *Registry) Get(connId string) (types.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connId]
	return s, ok
}

func (r *Registry) Remove(connId string) (types.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connId]
	if ok {
		delete(r.sessions, connId)
	}
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
