package events

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ChangeKind identifies what happened to a resource.
type ChangeKind string

const (
	Created ChangeKind = "created"
	Updated ChangeKind = "updated"
	Deleted ChangeKind = "deleted"
)

// Change is the payload fanned out to subscribers.
type Change struct {
	Kind         ChangeKind `json:"kind"`
	ResourceType string     `json:"resourceType"`
	ID           string     `json:"id"`
	VersionID    int        `json:"versionId"`
}

// Client is one subscriber connection: a per-connection send buffer
// drained by a dedicated writer goroutine, so a slow client can't block
// the hub.
type Client struct {
	conn         *websocket.Conn
	send         chan []byte
	resourceType string // "" subscribes to every resource type
	closed       bool
	mu           sync.Mutex
}

func newClient(conn *websocket.Conn, resourceType string) *Client {
	return &Client{conn: conn, send: make(chan []byte, 64), resourceType: resourceType}
}

func (c *Client) writeLoop(logger *zap.Logger) {
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Warn("websocket write failed, dropping client", zap.Error(err))
			return
		}
	}
}

func (c *Client) deliver(data []byte) {
	select {
	case c.send <- data:
	default:
		// buffer full: drop rather than block the hub.
	}
}

// Hub maintains the set of subscribed clients and broadcasts resource
// changes to the ones whose resourceType filter matches (or who
// subscribed to everything).
type Hub struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub constructs an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, clients: make(map[*Client]struct{})}
}

// Subscribe registers conn as a subscriber, optionally filtered to a
// single resourceType, and starts its writer goroutine. The returned
// unsubscribe func must be called when the connection closes.
func (h *Hub) Subscribe(conn *websocket.Conn, resourceType string) (unsubscribe func()) {
	c := newClient(conn, resourceType)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop(h.logger)

	return func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			c.mu.Lock()
			if !c.closed {
				c.closed = true
				close(c.send)
			}
			c.mu.Unlock()
		}
		h.mu.Unlock()
	}
}

// Publish announces a change to every matching local subscriber. It
// never blocks on a slow client.
func (h *Hub) Publish(change Change) {
	data, err := json.Marshal(change)
	if err != nil {
		h.logger.Error("failed to marshal change", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.resourceType != "" && c.resourceType != change.ResourceType {
			continue
		}
		c.deliver(data)
	}
}

// ClientCount reports the number of currently subscribed connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
