package ws

import (
	"context"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one subscriber. An empty store set receives every notice.
type Client struct {
	conn   Conn
	stores map[uuid.UUID]struct{}
}

func NewClient(conn Conn, stores []uuid.UUID) *Client {
	c := &Client{conn: conn, stores: make(map[uuid.UUID]struct{}, len(stores))}
	for _, id := range stores {
		c.stores[id] = struct{}{}
	}
	return c
}

func (c *Client) wants(storeIDs []uuid.UUID) bool {
	if len(c.stores) == 0 {
		return true
	}
	for _, id := range storeIDs {
		if _, ok := c.stores[id]; ok {
			return true
		}
	}
	return false
}

type message struct {
	stores  []uuid.UUID
	payload []byte
}

type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	mutex      sync.Mutex
	log        *zap.Logger
}

const broadcastBuffer = 256

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, broadcastBuffer),
		done:       make(chan struct{}),
		log:        log.Named("ws"),
	}
}

// Register adds c to the hub. Once Run has returned the client is closed
// instead.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.conn.Close()
	}
}

// Unregister removes and closes c. It returns immediately after shutdown, when
// Run has already closed every client.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues a notice for clients of any of the given stores. It never
// blocks: when the queue is full the notice is dropped.
func (h *Hub) Publish(storeIDs []uuid.UUID, payload []byte) {
	select {
	case h.broadcast <- message{stores: storeIDs, payload: payload}:
	default:
		h.log.Warn("broadcast queue full, dropping notice", zap.Int("bytes", len(payload)))
	}
}

// ClientCount is the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Run serves registrations and broadcasts until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				c.conn.Close()
				delete(h.clients, c)
			}
			h.mutex.Unlock()
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = struct{}{}
			h.mutex.Unlock()
			h.log.Debug("client connected", zap.Int("stores", len(c.stores)))

		case c := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.conn.Close()
			}
			h.mutex.Unlock()

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for c := range h.clients {
				if !c.wants(msg.stores) {
					continue
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					c.conn.Close()
					delete(h.clients, c)
				}
			}
			h.mutex.Unlock()
		}
	}
}
