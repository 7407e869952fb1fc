package client

// client.go = controller side of the tank protocol: send one holding-register
// frame, read back one input-register line.

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"watertank/pkg/protocol"
)

// Stats holds per-connection counters
type Stats struct {
	RequestsSent      int
	ResponsesReceived int
	ConnectedAt       time.Time
	LastResponse      time.Time
}

// Client talks to a tank server over one TCP connection.
// Calls are serialized, the protocol is strictly request/response.
type Client struct {
	serverAddr string
	conn       net.Conn
	reader     *bufio.Reader
	timeout    time.Duration
	stats      Stats
	mu         sync.Mutex
}

// Dial connects to serverAddr. timeout bounds the dial and every round trip.
func Dial(serverAddr string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := net.DialTimeout("tcp", serverAddr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return &Client{
		serverAddr: serverAddr,
		conn:       conn,
		reader:     bufio.NewReader(conn),
		timeout:    timeout,
		stats:      Stats{ConnectedAt: time.Now()},
	}, nil
}

// SendOutflow sends x (outflow command) and y (setpoint) and returns the
// server's view of the tank at the time it answered.
func (c *Client) SendOutflow(x, y int32) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return protocol.Response{}, fmt.Errorf("not connected")
	}

	frame, err := protocol.EncodeRequest(protocol.RequestType, x, y)
	if err != nil {
		return protocol.Response{}, err
	}

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := c.conn.Write(frame); err != nil {
		return protocol.Response{}, fmt.Errorf("failed to send request: %w", err)
	}
	c.stats.RequestsSent++

	resp, err := protocol.ReadResponse(c.reader)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("failed to read response: %w", err)
	}
	c.stats.ResponsesReceived++
	c.stats.LastResponse = time.Now()
	return resp, nil
}

// Stats returns a copy of the counters
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close closes the connection. Safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
