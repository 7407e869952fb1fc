package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the stream carries no tank data, any origin may watch it
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamServer serves the counter stream on its own address
type StreamServer struct {
	Addr     string
	Interval time.Duration
	Hub      *Hub

	ctx    context.Context // cancelled by Shutdown, stops every WritePump
	cancel context.CancelFunc
	srv    *http.Server
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewStreamServer(addr string, interval time.Duration, logger *slog.Logger) *StreamServer {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &StreamServer{
		Addr:     addr,
		Interval: interval,
		Hub:      NewHub(logger),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router: every path upgrades, the stream has a single endpoint
func (s *StreamServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/*path", s.WSHandler())
	return r
}

// WSHandler: upgrade the request and start the counter for it
func (s *StreamServer) WSHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote an HTTP error to the client
			s.logger.Warn("ws_upgrade_failed", "remote_addr", c.Request.RemoteAddr, "error", err.Error())
			return
		}

		client := NewClient(conn, s.Hub, s.logger)
		s.Hub.Register(client)

		s.wg.Add(1)
		go client.ReadPump()
		go func() {
			defer s.wg.Done()
			defer s.Hub.Unregister(client)
			client.WritePump(s.ctx, s.Interval)
		}()
	}
}

// Serve runs on an existing listener. Returns nil after Shutdown.
func (s *StreamServer) Serve(ln net.Listener) error {
	s.logger.Info("ws_server_started", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server failed: %w", err)
	}
	return nil
}

// Start binds Addr and serves
func (s *StreamServer) Start() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to start websocket server, error: %w", err)
	}
	return s.Serve(ln)
}

// Shutdown stops accepting, ends every stream and waits for the writers.
func (s *StreamServer) Shutdown(ctx context.Context) error {
	s.cancel()
	// hijacked connections are not tracked by http.Server
	err := s.srv.Shutdown(ctx)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Hub.CloseAll()
		<-done
	}
	s.logger.Info("ws_server_stopped")
	return err
}
