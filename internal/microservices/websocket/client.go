package websocket

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// One stream client per upgraded connection

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer => no pong = no connection
	PingPeriod     = (PongWait * 9) / 10 // 90% of pong wait, leaves room for network jitter
	MaxMessageSize = 512                 // maximum message size allowed from peer
)

type Client struct {
	ID     string          // unique client ID
	Conn   *websocket.Conn // WebSocket connection
	Hub    *Hub            // reference to the registry
	done   chan struct{}   // closed by ReadPump when the peer goes away
	logger *slog.Logger
}

// constructor new client
func NewClient(conn *websocket.Conn, hub *Hub, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		Conn:   conn,
		Hub:    hub,
		done:   make(chan struct{}),
		logger: logger.With("client_id", id),
	}
}

// ReadPump: drains incoming frames so close and pong control frames are
// processed. Whatever the peer sends is discarded.
func (c *Client) ReadPump() {
	defer close(c.done)
	c.Conn.SetReadLimit(MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ws_read_failed", "error", err.Error())
			}
			return
		}
	}
}

// WritePump: sends "1", "2", ... every interval until the peer leaves,
// a write fails or ctx is cancelled. Owns all writes on Conn.
func (c *Client) WritePump(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	ping := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
		c.Close()
	}()

	var counter uint64
	for {
		select {
		case <-ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-c.done:
			return
		case <-ping.C:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ticker.C:
			counter++
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.SendMessage([]byte(strconv.FormatUint(counter, 10))); err != nil {
				c.logger.Debug("ws_write_failed", "error", err.Error(), "sent", counter-1)
				return
			}
		}
	}
}

// SendMessage writes one text frame
func (c *Client) SendMessage(message []byte) error {
	return c.Conn.WriteMessage(websocket.TextMessage, message)
}

// Close: close the underlying connection, ReadPump then exits
func (c *Client) Close() error {
	return c.Conn.Close()
}
