package hub

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Connection wraps one websocket client. All writes go through the buffered
// send channel so the hub loop never blocks on a slow client.
type Connection struct {
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]struct{}
	userID int64

	mu     sync.Mutex
	closed bool
}

func (c *Connection) UserID() int64 { return c.userID }

type cmdKind int

const (
	cmdRegister cmdKind = iota
	cmdUnregister
	cmdSubscribe
	cmdUnsubscribe
	cmdBroadcast
)

type command struct {
	kind        cmdKind
	c           *Connection
	topics      []string
	topic       string
	payload     []byte
	excludeUser int64
}

// Hub routes payloads to topic subscribers. Topics are plain strings
// ("room:7", "user:3", "community_post:12"). All commands travel over a
// single channel so the Run goroutine handles them strictly in enqueue
// order: a broadcast issued after a subscribe always sees the subscription,
// and an unregister can never be overtaken by an earlier subscribe.
type Hub struct {
	commands chan command
	topics   map[string]map[*Connection]struct{}
}

func NewConnection(conn *websocket.Conn, userID int64) *Connection {
	return &Connection{
		conn:   conn,
		send:   make(chan []byte, 128),
		topics: make(map[string]struct{}),
		userID: userID,
	}
}

func NewHub() *Hub {
	return &Hub{
		commands: make(chan command, 256),
		topics:   make(map[string]map[*Connection]struct{}),
	}
}

func (h *Hub) Run() {
	for cmd := range h.commands {
		switch cmd.kind {
		case cmdRegister:
			// Membership state lives on the connection; nothing to do yet.

		case cmdUnregister:
			for topic := range cmd.c.topics {
				h.drop(topic, cmd.c)
			}
			cmd.c.CloseSend()

		case cmdSubscribe:
			for _, topic := range cmd.topics {
				subs := h.topics[topic]
				if subs == nil {
					subs = make(map[*Connection]struct{})
					h.topics[topic] = subs
				}
				subs[cmd.c] = struct{}{}
				cmd.c.topics[topic] = struct{}{}
			}

		case cmdUnsubscribe:
			for _, topic := range cmd.topics {
				h.drop(topic, cmd.c)
				delete(cmd.c.topics, topic)
			}

		case cmdBroadcast:
			subs := h.topics[cmd.topic]
			if subs == nil {
				continue
			}

			for c := range subs {
				if cmd.excludeUser != 0 && c.userID == cmd.excludeUser {
					continue
				}
				c.Send(cmd.payload)
			}
		}
	}
}

func (h *Hub) drop(topic string, c *Connection) {
	subs := h.topics[topic]
	if subs == nil {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

func (h *Hub) Register(c *Connection) {
	h.commands <- command{kind: cmdRegister, c: c}
}

func (h *Hub) Unregister(c *Connection) {
	h.commands <- command{kind: cmdUnregister, c: c}
}

func (h *Hub) Subscribe(c *Connection, topics ...string) {
	h.commands <- command{kind: cmdSubscribe, c: c, topics: topics}
}

func (h *Hub) Unsubscribe(c *Connection, topics ...string) {
	h.commands <- command{kind: cmdUnsubscribe, c: c, topics: topics}
}

func (h *Hub) Broadcast(topic string, payload []byte) {
	h.commands <- command{kind: cmdBroadcast, topic: topic, payload: payload}
}

func (h *Hub) BroadcastExceptUser(topic string, payload []byte, excludeUserID int64) {
	h.commands <- command{kind: cmdBroadcast, topic: topic, payload: payload, excludeUser: excludeUserID}
}

// Send drops the payload if the client's buffer is full or already closed; a
// stalled or departed reader must not stall the hub.
func (c *Connection) Send(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- b:
	default:
	}
}

func (c *Connection) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
