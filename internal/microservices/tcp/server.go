package tcp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"watertank/internal/simulation"
)

// server struct and methods
type TCPServer struct {
	Addr string
	// configured listen address, see BoundAddr for the real one
	Manager *ConnectionManager
	// tracks live connections so Stop can close them
	state   simulation.StateReader
	control simulation.ControlSender
	// every handler gets these two handles, never anything else of the simulation
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	quitChan chan struct{}
	// closed by Stop, accept loop exits when it sees it
	stopOnce sync.Once
	wg       sync.WaitGroup
	// one per connection handler goroutine
}

// Options tunes per-connection behaviour
type Options struct {
	ReadTimeout  time.Duration // idle limit while waiting for / reading a frame
	WriteTimeout time.Duration // limit for writing one response
	ControlRate  rate.Limit    // control commands per second per connection
	ControlBurst int
	Logger       *slog.Logger
}

// DefaultOptions mirrors the defaults in internal/config
func DefaultOptions() Options {
	return Options{
		ReadTimeout:  MaxDeadlineDuration,
		WriteTimeout: 10 * time.Second,
		ControlRate:  rate.Limit(50),
		ControlBurst: 100,
	}
}

// constructor for Server
func NewServer(addr string, state simulation.StateReader, control simulation.ControlSender, opts Options) *TCPServer {
	def := DefaultOptions()
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.ControlRate <= 0 {
		opts.ControlRate = def.ControlRate
	}
	if opts.ControlBurst <= 0 {
		opts.ControlBurst = def.ControlBurst
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TCPServer{
		Addr:     addr,
		Manager:  NewConnectionManager(logger),
		state:    state,
		control:  control,
		opts:     opts,
		logger:   logger,
		quitChan: make(chan struct{}),
	}
}

// Listen binds the address. A bind failure is fatal to startup.
func (s *TCPServer) Listen() error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server, error: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.logger.Info("tcp_server_started", "addr", listener.Addr().String())
	return nil
}

// BoundAddr returns the address actually listened on, nil before Listen.
func (s *TCPServer) BoundAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds and then serves until Stop. Returns nil after Stop.
func (s *TCPServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts connections in a loop, one handler goroutine per connection.
func (s *TCPServer) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("tcp server is not listening")
	}
	defer listener.Close()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quitChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept_failed", "error", err.Error())
			time.Sleep(10 * time.Millisecond)
			continue
		}
		// add +1 to wait group for the new connection handler goroutine
		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.handleConnection(conn)
		}(conn)
	}
}

// handle connections/lifecycle of single client connection
func (s *TCPServer) handleConnection(conn net.Conn) {
	client := NewClientConnection(conn, s.Manager, s.state, s.control, s.opts)
	s.Manager.AddConnection(client)
	select {
	case <-s.quitChan:
		// accepted while Stop was running, CloseAllConnections may have missed it
		client.Close()
	default:
	}
	client.Listen()
	s.Manager.RemoveConnection(client)
}

// Stop closes the listener and every live connection, then waits for the
// handlers to return. Safe to call more than once.
func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.quitChan)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
		s.Manager.CloseAllConnections()
		s.wg.Wait()
		s.logger.Info("tcp_server_stopped")
	})
}
