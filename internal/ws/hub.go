package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans event payloads out to feed subscribers. Clients that fail a send
// are dropped; the feed is best-effort and carries no history.
type Hub struct {
	mu      sync.Mutex
	clients map[Subscriber]struct{}
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[Subscriber]struct{})}
}

// Register adds a client to the feed.
func (h *Hub) Register(client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes a client.
func (h *Hub) Unregister(client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// Broadcast sends payload to every connected client.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := c.Send(payload); err != nil {
			c.Close()
			delete(h.clients, c)
		}
	}
}
