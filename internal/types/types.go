package types

import (
	"time"
)

// MaxHistory is the number of messages retained per room.
const MaxHistory = 100

type Session struct {
	Id           string    `json:"session_id"`
	ConnectionId string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Room         string    `json:"room"`
	JoinedAt     time.Time `json:"joined_at"`
}

type Message struct {
	Id        string    `json:"id"`
	SessionId string    `json:"session_id"`
	Username  string    `json:"username"`
	Room      string    `json:"room"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

type RoomInfo struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int64  `json:"member_count"`
}

type PresenceAction string

const (
	PresenceJoined PresenceAction = "joined"
	PresenceLeft   PresenceAction = "left"
)

type Presence struct {
	Action      PresenceAction `json:"action"`
	Room        string         `json:"room"`
	DisplayName string         `json:"display_name"`
	MemberCount int64          `json:"member_count"`
	Timestamp   time.Time      `json:"timestamp"`
}

type TypingState struct {
	Room        string `json:"room"`
	DisplayName string `json:"display_name"`
	IsTyping    bool   `json:"is_typing"`
}

type EventType string

const (
	EventPresence EventType = "presence"
	EventMessage  EventType = "message"
	EventTyping   EventType = "typing"
)

// Event is the unit published on the event bus. Every gateway instance
// receives every event and delivers it to its local clients in Room.
type Event struct {
	Type   EventType `json:"type"`
	Room   string    `json:"room"`
	Origin string    `json:"origin"`
	// SkipConnection is a connection id that must not receive the event.
	SkipConnection string       `json:"skip_connection,omitempty"`
	Presence       *Presence    `json:"presence,omitempty"`
	Message        *Message     `json:"message,omitempty"`
	Typing         *TypingState `json:"typing,omitempty"`
}

// Now returns the server timestamp used for messages and events.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
