package simulation

import "sync"

// DefaultControlCapacity matches the two-slot queue of the reference server
const DefaultControlCapacity = 2

// ControlCommand is one outflow setpoint decoded from a client request.
// Both fields are normalized 16-bit magnitudes; the driver scales them.
type ControlCommand struct {
	OutflowRaw  uint16
	SetpointRaw uint16
}

// ControlSender is the publish side of the control channel handed to every connection.
type ControlSender interface {
	// Send queues cmd and reports whether an older command was dropped to make room.
	Send(cmd ControlCommand) (dropped bool)
}

// ControlChannel is a bounded ring of commands, safe for concurrent producers
// and a single consumer. When full the oldest entry is overwritten and the
// drop is counted; the consumer sees the count on its next receive.
type ControlChannel struct {
	mu     sync.Mutex
	data   []ControlCommand
	head   int
	count  int
	missed uint64
}

// NewControlChannel constructs the ring with the given capacity (min 1).
func NewControlChannel(capacity int) *ControlChannel {
	if capacity < 1 {
		capacity = 1
	}
	return &ControlChannel{data: make([]ControlCommand, capacity)}
}

// Send never blocks.
func (c *ControlChannel) Send(cmd ControlCommand) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := false
	if c.count == len(c.data) {
		// drop oldest
		c.head = (c.head + 1) % len(c.data)
		c.count--
		c.missed++
		dropped = true
	}
	tail := (c.head + c.count) % len(c.data)
	c.data[tail] = cmd
	c.count++
	return dropped
}

// TryReceive pops the oldest queued command without waiting. missed is the
// number of commands dropped since the previous successful receive.
func (c *ControlChannel) TryReceive() (cmd ControlCommand, missed uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.count == 0 {
		return ControlCommand{}, 0, false
	}
	cmd = c.data[c.head]
	c.head = (c.head + 1) % len(c.data)
	c.count--
	missed, c.missed = c.missed, 0
	return cmd, missed, true
}

// Len reports the number of queued commands.
func (c *ControlChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Capacity reports the maximum number of queued commands.
func (c *ControlChannel) Capacity() int {
	return len(c.data)
}
