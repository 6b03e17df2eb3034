package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chat-gateway/internal/chat"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192

	// a single rune can take 12 bytes as an escaped surrogate pair
	maxEscapedRuneSize = 12
	envelopeSize       = 2048
)

type connState int

const (
	stateConnected connState = iota
	stateJoined
	stateDisconnected
)

func (s connState) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateJoined:
		return "joined"
	case stateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

type Client struct {
	id          string
	conn        *websocket.Conn
	chatServer  *ChatServer
	log         *log.Logger
	send        chan *ServerMessage
	stop        chan struct{}
	stopOnce    sync.Once
	cleanupOnce sync.Once
	limiter     *rate.Limiter

	// state is only touched by the read loop.
	state connState

	// typingLock is held across the typing-stop publish so an expiry can
	// never land after the connection's leave.
	typingLock   sync.Mutex
	typing       bool
	typingClosed bool
	typingTimer  *time.Timer
}

func NewClient(conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		id:         uuid.NewString(),
		conn:       conn,
		chatServer: cs,
		log:        l,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
		limiter:    rate.NewLimiter(cs.opts.RateLimit, cs.opts.RateBurst),
		state:      stateConnected,
	}
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(readLimit(c.chatServer.opts.MaxMessageLength))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}
		msg.Timestamp = Now()

		c.handle(context.Background(), &msg)
	}
}

func (c *Client) handle(ctx context.Context, msg *ClientMessage) {
	switch {
	case msg.Join != nil:
		c.join(ctx, msg)
	case msg.Send != nil:
		if !c.limiter.Allow() {
			c.queueMessage(ErrTooManyRequests(msg.Id))
			return
		}
		c.sendChatMessage(ctx, msg)
	case msg.Typing != nil:
		c.setTyping(ctx, msg)
	case msg.History != nil:
		c.history(ctx, msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) join(ctx context.Context, msg *ClientMessage) {
	if c.state == stateJoined {
		c.queueMessage(errorMessage(msg.Id, chat.ErrAlreadyJoined))
		return
	}

	name, room, err := chat.ValidateJoin(msg.Join.DisplayName, msg.Join.Room)
	if err != nil {
		c.queueMessage(errorMessage(msg.Id, err))
		return
	}

	cs := c.chatServer
	// index first so this client receives its own joined event
	cs.addToRoom(room, c)

	count, err := cs.chat.Presence.Join(ctx, room, c.id, name)
	if err != nil {
		cs.removeFromRoom(room, c)
		c.log.Printf("join %q: %v", room, err)
		c.queueMessage(errorMessage(msg.Id, err))
		return
	}

	sess := cs.chat.Registry.Create(c.id, name, room)
	c.state = stateJoined
	c.log.Printf("%s joined %q (%d members)", name, room, count)

	c.queueMessage(NoErrOK(msg.Id, JoinResult{
		SessionId:   sess.Id,
		Room:        room,
		MemberCount: count,
	}))
}

func (c *Client) sendChatMessage(ctx context.Context, msg *ClientMessage) {
	_, err := c.chatServer.chat.Pipeline.Send(ctx, msg.Send.Room, c.id, msg.Send.Body)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			return
		}
		c.log.Println("send:", err)
		c.queueMessage(errorMessage(msg.Id, err))
		return
	}

	c.chatServer.stats.Incr(MetricMessagesSent)
}

func (c *Client) setTyping(ctx context.Context, msg *ClientMessage) {
	typing := c.chatServer.chat.Typing
	var err error
	if msg.Typing.IsTyping {
		if err = typing.Start(ctx, msg.Typing.Room, c.id); err == nil {
			c.markTyping()
		}
	} else {
		c.clearTyping()
		err = typing.Stop(ctx, msg.Typing.Room, c.id)
	}

	if err != nil {
		c.queueMessage(errorMessage(msg.Id, err))
	}
}

func (c *Client) history(ctx context.Context, msg *ClientMessage) {
	sess, ok := c.chatServer.chat.Registry.Get(c.id)
	if !ok {
		c.queueMessage(ErrNotAuthenticated(msg.Id))
		return
	}

	room := msg.History.Room
	if room == "" {
		room = sess.Room
	}

	messages, err := c.chatServer.chat.Pipeline.History(ctx, room)
	if err != nil {
		c.log.Printf("history %q: %v", room, err)
		c.queueMessage(errorMessage(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, HistoryResult{
		Room:     room,
		Messages: messages,
	}))
}

// markTyping records an active typing indicator and (re)arms its expiry.
func (c *Client) markTyping() {
	c.typingLock.Lock()
	defer c.typingLock.Unlock()

	if c.typingClosed {
		return
	}
	c.typing = true
	timeout := c.chatServer.opts.TypingTimeout
	if timeout <= 0 {
		return
	}
	if c.typingTimer == nil {
		c.typingTimer = time.AfterFunc(timeout, c.expireTyping)
	} else {
		c.typingTimer.Reset(timeout)
	}
}

// clearTyping reports whether an indicator was active.
func (c *Client) clearTyping() bool {
	c.typingLock.Lock()
	defer c.typingLock.Unlock()

	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	was := c.typing
	c.typing = false
	return was
}

func (c *Client) expireTyping() {
	c.typingLock.Lock()
	defer c.typingLock.Unlock()

	if c.typingClosed || !c.typing {
		return
	}
	c.typing = false

	err := c.chatServer.chat.Typing.Stop(context.Background(), "", c.id)
	if err != nil && !errors.Is(err, chat.ErrNotAuthenticated) {
		c.log.Println("typing expiry:", err)
	}
}

// closeTyping stops any active indicator for good. A pending expiry
// becomes a no-op.
func (c *Client) closeTyping(ctx context.Context, room string) {
	c.typingLock.Lock()
	defer c.typingLock.Unlock()

	c.typingClosed = true
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	if !c.typing {
		return
	}
	c.typing = false

	if err := c.chatServer.chat.Typing.Stop(ctx, room, c.id); err != nil {
		c.log.Println("typing stop on disconnect:", err)
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

// readLimit sizes the read buffer so a frame carrying a maximum-length body
// always reaches validation, however its runes are encoded.
func readLimit(maxLength int) int64 {
	return max(maxMessageSize, int64(maxLength)*maxEscapedRuneSize+envelopeSize)
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup releases everything the connection holds. It runs once no matter
// how the connection ended.
func (c *Client) cleanup() {
	c.cleanupOnce.Do(func() {
		cs := c.chatServer
		ctx := context.Background()

		if sess, ok := cs.chat.Registry.Get(c.id); ok {
			c.closeTyping(ctx, sess.Room)

			if _, err := cs.chat.Presence.Leave(ctx, sess.Room, c.id, sess.DisplayName); err != nil {
				c.log.Printf("leave %q on disconnect: %v", sess.Room, err)
			}
			cs.chat.Registry.Remove(c.id)
			cs.removeFromRoom(sess.Room, c)
		}

		c.state = stateDisconnected
		cs.deregisterClient(c)
		c.stopClient()
	})
}
