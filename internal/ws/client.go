package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a feed write may block on a slow consumer.
const writeWait = 5 * time.Second

// Client is one websocket consumer of the card feed. Broadcast writes and
// the close handshake can race, so both are serialized through mu.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{conn: conn, log: logger}
}

// Send pushes one event frame to the consumer. A write error or a deadline
// hit marks the client closed so the hub drops it from the feed.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("card feed send failed", "error", err)
		c.closed = true
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close performs the closing handshake and tears down the connection.
// Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	_ = c.conn.Close()
}
