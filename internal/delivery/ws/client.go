package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mmuslimabdulj/goat-grab/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024
)

// Client represents a single websocket connection (one browser tab)
type Client struct {
	ID        string
	SessionID string
	hub       *Hub
	conn      *websocket.Conn
	form      Form
	send      chan []byte
}

// NewClient creates a new Client for the given session
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string, form Form) *Client {
	return &Client{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		hub:       hub,
		conn:      conn,
		form:      form,
		send:      make(chan []byte, 64),
	}
}

// ReadPump pumps messages from the websocket connection to the form
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.handle(message)
	}
}

// handle applies one inbound frame. Unknown types are ignored.
func (c *Client) handle(message []byte) {
	var incoming struct {
		Type    domain.EventType `json:"type"`
		Payload json.RawMessage  `json:"payload"`
	}
	if err := json.Unmarshal(message, &incoming); err != nil {
		return
	}

	switch incoming.Type {
	case domain.EventTypeDismiss:
		var payload domain.DismissPayload
		if len(incoming.Payload) > 0 {
			if err := json.Unmarshal(incoming.Payload, &payload); err != nil {
				return
			}
		}
		if c.form != nil {
			c.form.DismissAlert(payload.ID)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One event per frame so the page can JSON.parse each message
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send adds a message to the client's send queue
func (c *Client) Send(msg []byte) {
	select {
	case c.send <- msg:
	default:
		// Buffer full
	}
}
