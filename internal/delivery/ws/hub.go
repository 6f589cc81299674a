package ws

import (
	"encoding/json"
	"sync"

	"github.com/mmuslimabdulj/goat-grab/internal/domain"
)

// Form is the part of a form session the WebSocket layer needs
type Form interface {
	Snapshot() domain.State
	DismissAlert(id string) domain.State
}

type envelope struct {
	sessionID string
	data      []byte
}

// Hub fans form events out to every tab open on the same session
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Client // sessionID -> clientID -> client

	register   chan *Client
	unregister chan *Client
	publish    chan envelope
	done       chan struct{}
	stopOnce   sync.Once
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan envelope, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			clients, ok := h.sessions[client.SessionID]
			if !ok {
				clients = make(map[string]*Client)
				h.sessions[client.SessionID] = clients
			}
			clients[client.ID] = client
			h.mu.Unlock()

			// New tabs start from the current state
			if client.form != nil {
				if data, err := json.Marshal(domain.NewStateEvent(client.form.Snapshot())); err == nil {
					client.Send(data)
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			clients, ok := h.sessions[client.SessionID]
			// Check if client exists - prevent double unregister
			if ok {
				if _, exists := clients[client.ID]; exists {
					delete(clients, client.ID)
					close(client.send)
				}
				if len(clients) == 0 {
					delete(h.sessions, client.SessionID)
				}
			}
			h.mu.Unlock()

		case env := <-h.publish:
			h.mu.RLock()
			for _, c := range h.sessions[env.sessionID] {
				c.Send(env.data)
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for _, clients := range h.sessions {
				for _, c := range clients {
					close(c.send)
				}
			}
			h.sessions = make(map[string]map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish sends an event to every client of a session
func (h *Hub) Publish(sessionID string, e domain.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	select {
	case h.publish <- envelope{sessionID: sessionID, data: data}:
	case <-h.done:
	default:
		// Hub backlog full, the page catches up on the next event
	}
}

// ClientCount returns the number of connected clients for a session
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Stop ends the event loop and closes every client queue
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}
