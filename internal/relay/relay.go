// Package relay publishes peripheral events to websocket subscribers, so
// dashboards and scripts can watch hub activity without touching the BLE
// stack.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/brickline/brickline/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientBuffer is the per-subscriber queue depth. A subscriber that falls
// this far behind is dropped rather than allowed to stall the hubs.
const clientBuffer = 32

// Server broadcasts hub events as JSON text messages to every connected
// websocket client.
type Server struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates an empty relay. Wire its Publish method into each hub
// with SetEventSink and mount the server on an HTTP mux.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		log:     logger.With("component", "relay"),
		clients: make(map[*client]struct{}),
	}
}

// Publish broadcasts one event to all subscribers. Never blocks: slow
// subscribers are disconnected instead.
func (s *Server) Publish(ev hub.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("marshal event", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			s.log.Warn("dropping slow subscriber", "remote", c.conn.RemoteAddr())
			delete(s.clients, c)
			close(c.send)
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.log.Info("subscriber connected", "remote", conn.RemoteAddr())

	go s.writeLoop(c)
	s.readLoop(c)
}

// writeLoop drains the client queue. A closed channel means the broadcaster
// dropped this client.
func (s *Server) writeLoop(c *client) {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.drop(c)
			return
		}
	}
	c.conn.Close()
}

// readLoop discards inbound messages and notices disconnects. The relay is
// one-directional; clients only listen.
func (s *Server) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.drop(c)
			return
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	if ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	c.conn.Close()
	if ok {
		s.log.Info("subscriber disconnected", "remote", c.conn.RemoteAddr())
	}
}

// ClientCount reports the number of connected subscribers.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Run serves the relay on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("listening", "addr", addr)

	select {
	case <-ctx.Done():
		s.shutdown()
		srv.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}
