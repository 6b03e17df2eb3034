package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-chat-gateway/internal/bus"
	"github.com/npezzotti/go-chat-gateway/internal/chat"
	"github.com/npezzotti/go-chat-gateway/internal/stats"
	"github.com/npezzotti/go-chat-gateway/internal/types"
	"golang.org/x/time/rate"
)

const (
	DefaultRateLimit = 5
	DefaultRateBurst = 10

	eventQueueSize = 1024
)

const (
	MetricActiveClients   = "NumActiveClients"
	MetricLocalRooms      = "NumLocalRooms"
	MetricMessagesSent    = "NumMessagesSent"
	MetricEventsDelivered = "NumEventsDelivered"
)

type Options struct {
	// TypingTimeout is how long a typing indicator lasts without a refresh.
	// Zero disables the automatic stop.
	TypingTimeout time.Duration
	RateLimit     rate.Limit
	RateBurst     int
	// MaxMessageLength is the longest body in runes; it sizes the read limit.
	MaxMessageLength int
}

type stopReq struct {
	done chan struct{}
}

// ChatServer owns the connections of one gateway instance. Bus events are
// funneled into Run, which delivers them to the local clients of the
// event's room.
type ChatServer struct {
	log       *log.Logger
	chat      *chat.Service
	bus       bus.Bus
	stats     stats.StatsProvider
	opts      Options
	sub       bus.Subscription
	clients   map[*Client]struct{}
	rooms     map[string]*Room
	lock      sync.RWMutex
	clientsWg sync.WaitGroup
	eventChan chan types.Event
	stop      chan stopReq
	done      chan struct{}
}

func NewChatServer(logger *log.Logger, svc *chat.Service, b bus.Bus, su stats.StatsProvider, opts Options) *ChatServer {
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = DefaultRateBurst
	}
	if opts.TypingTimeout < 0 {
		opts.TypingTimeout = 0
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = chat.DefaultMaxMessageLength
	}

	su.RegisterMetric(MetricActiveClients)
	su.RegisterMetric(MetricLocalRooms)
	su.RegisterMetric(MetricMessagesSent)
	su.RegisterMetric(MetricEventsDelivered)

	return &ChatServer{
		log:       logger,
		chat:      svc,
		bus:       b,
		stats:     su,
		opts:      opts,
		clients:   make(map[*Client]struct{}),
		rooms:     make(map[string]*Room),
		eventChan: make(chan types.Event, eventQueueSize),
		stop:      make(chan stopReq),
		done:      make(chan struct{}),
	}
}

// Subscribe attaches the server to the event bus. It must succeed before
// any client is served.
func (cs *ChatServer) Subscribe(ctx context.Context) error {
	sub, err := cs.bus.Subscribe(ctx, cs.handleEvent)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	cs.sub = sub
	return nil
}

func (cs *ChatServer) handleEvent(ev types.Event) {
	select {
	case cs.eventChan <- ev:
	case <-cs.done:
	}
}

func (cs *ChatServer) Run() {
	for {
		select {
		case ev := <-cs.eventChan:
			cs.dispatch(ev)
		case req := <-cs.stop:
			cs.log.Println("chat server stopping")
			close(cs.done)
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) dispatch(ev types.Event) {
	msg := eventMessage(ev)
	if msg == nil {
		cs.log.Printf("dropping event with unknown type %q", ev.Type)
		return
	}

	cs.lock.RLock()
	defer cs.lock.RUnlock()

	room, ok := cs.rooms[ev.Room]
	if !ok {
		return
	}

	if n := room.broadcast(msg, ev.SkipConnection); n > 0 {
		cs.stats.Incr(MetricEventsDelivered)
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	cs.clients[c] = struct{}{}
	cs.clientsWg.Add(1)
	cs.stats.Incr(MetricActiveClients)
}

func (cs *ChatServer) deregisterClient(c *Client) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}
	delete(cs.clients, c)
	cs.clientsWg.Done()
	cs.stats.Decr(MetricActiveClients)
}

// addToRoom indexes c under room so events for room reach it.
func (cs *ChatServer) addToRoom(name string, c *Client) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	room, ok := cs.rooms[name]
	if !ok {
		room = newRoom(name)
		cs.rooms[name] = room
		cs.stats.Incr(MetricLocalRooms)
	}
	room.addClient(c)
}

func (cs *ChatServer) removeFromRoom(name string, c *Client) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	room, ok := cs.rooms[name]
	if !ok || !room.removeClient(c) {
		return
	}

	if room.empty() {
		delete(cs.rooms, name)
		cs.stats.Decr(MetricLocalRooms)
	}
}

func (cs *ChatServer) numClients() int {
	cs.lock.RLock()
	defer cs.lock.RUnlock()
	return len(cs.clients)
}

// Shutdown disconnects every client, waits for their cleanup to finish and
// stops the event loop.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.lock.RLock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.lock.RUnlock()

	cleaned := make(chan struct{})
	go func() {
		cs.clientsWg.Wait()
		close(cleaned)
	}()

	select {
	case <-cleaned:
	case <-ctx.Done():
		return ctx.Err()
	}

	if cs.sub != nil {
		if err := cs.sub.Unsubscribe(); err != nil {
			cs.log.Println("unsubscribe:", err)
		}
	}

	req := stopReq{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
