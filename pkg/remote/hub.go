// Package remote publishes the panel's live readings and status over
// WebSocket, so a browser on the lab network can watch a run.
package remote

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Message is the event envelope sent to readout watchers. Watchers switch
// on Type and treat Data as an arbitrary JSON object.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Client wraps a websocket connection with a per-connection write mutex;
// gorilla forbids concurrent writes on one Conn.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub broadcasts readout events to every connected watcher. The panel is
// single-user; an in-memory hub is enough.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Add registers a connection and returns its Client wrapper.
func (h *Hub) Add(conn *websocket.Conn) *Client {
	c := &Client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Remove unregisters a client and closes its connection.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

// Count returns the number of connected watchers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast fans a message out to every watcher. The message is marshalled
// once; write failures are ignored here because the read loop notices the
// dead connection and removes the client.
func (h *Hub) Broadcast(msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to encode readout message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.mu.Lock()
		_ = c.conn.WriteMessage(websocket.TextMessage, b)
		c.mu.Unlock()
	}
}
