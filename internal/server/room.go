package server

// Room is the set of clients on this instance joined to one room. Room
// membership across instances is tracked in the store; a Room only decides
// where this instance delivers bus events.
type Room struct {
	name    string
	clients map[*Client]struct{}
}

func newRoom(name string) *Room {
	return &Room{
		name:    name,
		clients: make(map[*Client]struct{}),
	}
}

func (r *Room) addClient(c *Client) {
	r.clients[c] = struct{}{}
}

func (r *Room) removeClient(c *Client) bool {
	if _, ok := r.clients[c]; !ok {
		return false
	}
	delete(r.clients, c)
	return true
}

func (r *Room) empty() bool {
	return len(r.clients) == 0
}

// broadcast queues msg for every client in the room except the one whose
// connection id is skip.
func (r *Room) broadcast(msg *ServerMessage, skip string) int {
	n := 0
	for c := range r.clients {
		if skip != "" && c.id == skip {
			continue
		}
		if c.queueMessage(msg) {
			n++
		}
	}
	return n
}
