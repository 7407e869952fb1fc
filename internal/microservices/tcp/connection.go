package tcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"watertank/internal/metrics"
	"watertank/internal/simulation"
	"watertank/pkg/protocol"
)

const MaxDeadlineDuration = 5 * time.Minute // default read timeout

// connState is where a connection is in its request/response cycle
type connState int

const (
	stateAwaitFrame connState = iota
	stateReadHeader
	stateReadPayload
	stateRespond
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAwaitFrame:
		return "await_frame"
	case stateReadHeader:
		return "read_header"
	case stateReadPayload:
		return "read_payload"
	case stateRespond:
		return "respond"
	default:
		return "closed"
	}
}

type ClientConnection struct {
	ID      string // unique identifier = key in map
	conn    net.Conn
	reader  *bufio.Reader
	Writer  *bufio.Writer
	Manager *ConnectionManager
	Limiter *rate.Limiter // limits how fast one controller can push commands

	state   simulation.StateReader
	control simulation.ControlSender

	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger
}

// constructor for Connection
func NewClientConnection(conn net.Conn, manager *ConnectionManager, state simulation.StateReader, control simulation.ControlSender, opts Options) *ClientConnection {
	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientConnection{
		ID:           id,
		conn:         conn,
		reader:       bufio.NewReader(conn),
		Writer:       bufio.NewWriter(conn),
		Manager:      manager,
		Limiter:      rate.NewLimiter(opts.ControlRate, opts.ControlBurst),
		state:        state,
		control:      control,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		logger:       logger.With("client_id", id),
	}
}

// Listen runs the protocol state machine until the peer goes away or sends
// something we cannot decode. Nothing here ever escapes this goroutine.
func (c *ClientConnection) Listen() {
	defer c.conn.Close()

	c.logger.Info("client_started_listening",
		"remote_addr", c.conn.RemoteAddr().String(),
	)

	var (
		st      = stateAwaitFrame
		header  protocol.Header
		payload protocol.Payload
		err     error
		failed  connState // state the error came from
	)

	for st != stateClosed {
		switch st {
		case stateAwaitFrame:
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
			// peek: zero bytes means the peer closed
			if _, err = c.reader.Peek(1); err != nil {
				failed, st = st, stateClosed
				break
			}
			st = stateReadHeader

		case stateReadHeader:
			if header, err = protocol.ReadHeader(c.reader); err != nil {
				failed, st = st, stateClosed
				break
			}
			st = stateReadPayload

		case stateReadPayload:
			if payload, err = protocol.ReadPayload(c.reader, header); err != nil {
				failed, st = st, stateClosed
				break
			}
			st = stateRespond

		case stateRespond:
			if err = c.respond(header, payload); err != nil {
				failed, st = st, stateClosed
				break
			}
			st = stateAwaitFrame
		}
	}

	c.logClose(failed, err)
}

// respond publishes the command, reads the latest snapshot and answers.
func (c *ClientConnection) respond(h protocol.Header, p protocol.Payload) error {
	cmd := commandFromPayload(p)

	if c.Limiter.Allow() {
		if dropped := c.control.Send(cmd); dropped {
			c.logger.Debug("control_queue_overflow", "outflow_raw", cmd.OutflowRaw)
		}
	} else {
		c.logger.Warn("rate_limit_exceeded", "outflow_raw", cmd.OutflowRaw)
		metrics.RecordRateLimited()
	}

	resp := responseFromState(c.state.Latest())
	c.logger.Debug("request_answered",
		"msg_type", h.MsgType,
		"x", p.X,
		"tank_level", resp.TankLevel,
		"tank_inflow", resp.TankInflow,
	)
	metrics.RecordRequest()
	return c.Send(resp)
}

// method to send a response over the connection
func (c *ClientConnection) Send(resp protocol.Response) error {
	data, err := protocol.EncodeResponse(resp) // => json + "\n"
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if _, err := c.Writer.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := c.Writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

// logClose reports why the state machine reached Closed
func (c *ClientConnection) logClose(failed connState, err error) {
	var netErr net.Error
	switch {
	case err == nil:
		return
	case errors.Is(err, protocol.ErrMalformedFrame):
		// checked before io.EOF: a frame cut short wraps io.EOF too
		metrics.RecordMalformedFrame()
		c.logger.Warn("malformed_frame", "state", failed.String(), "error", err.Error())
	case errors.Is(err, io.EOF):
		c.logger.Info("client_disconnected")
	case errors.As(err, &netErr) && netErr.Timeout():
		c.logger.Warn("client_read_timeout")
	case isClosedConnErr(err):
		// expected during shutdown
	default:
		c.logger.Error("client_io_error", "state", failed.String(), "error", err.Error())
	}
}

// On Windows: "wsarecv: An established connection was aborted by the software in your host machine."
//
//	"wsarecv: An existing connection was forcibly closed by the remote host."
//
// On Linux: "use of closed network connection"
func isClosedConnErr(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "closed network connection") ||
		strings.Contains(err.Error(), "connection was aborted") ||
		strings.Contains(err.Error(), "forcibly closed") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// method to close the connection
func (c *ClientConnection) Close() {
	c.conn.Close()
}
