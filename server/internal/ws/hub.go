package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flowpulse/flowpulse/pkg/protocol"
	"github.com/flowpulse/flowpulse/server/internal/router"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// maxMessageSize bounds one inbound envelope.
	maxMessageSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Allow all origins; callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var errSessionClosed = errors.New("ws: session closed")

// Hub accepts extractor connections and registers each one as a router
// session. Every inbound envelope is dispatched through the router; replies
// go back on the same connection.
type Hub struct {
	rt *router.Router

	mu      sync.RWMutex
	clients map[*session]struct{}
}

// session is one connected extractor.
type session struct {
	id   string
	url  string
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewHub creates a Hub dispatching through rt.
func NewHub(rt *router.Router) *Hub {
	return &Hub{rt: rt, clients: make(map[*session]struct{})}
}

// Run blocks until ctx is cancelled, then closes all extractor connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP upgrades the connection and serves one extractor until it
// disconnects. The page URL comes from the `url` query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	s := &session{
		id:   uuid.NewString(),
		url:  r.URL.Query().Get("url"),
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(s)
	defer h.unregister(s)

	go writePump(s.conn, s.send)
	h.readPump(r.Context(), s) // blocks until connection closes
}

// Count returns the number of connected extractors.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- router.Session ---------------------------------------------------------

func (s *session) ID() string  { return s.id }
func (s *session) URL() string { return s.url }

// Send queues env without blocking. A session that cannot keep up is
// treated as gone.
func (s *session) Send(env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	select {
	case s.send <- data:
		return nil
	default:
		return errors.New("ws: session send buffer full")
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(s *session) {
	h.mu.Lock()
	h.clients[s] = struct{}{}
	h.mu.Unlock()
	h.rt.Env().Sessions.Add(s)
}

func (h *Hub) unregister(s *session) {
	env := h.rt.Env()
	env.Sessions.Remove(s.id)
	env.Indicator.SetIndicator(s.id, "", "")
	h.mu.Lock()
	delete(h.clients, s)
	h.mu.Unlock()
	s.close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	targets := make([]*session, 0, len(h.clients))
	for s := range h.clients {
		targets = append(targets, s)
	}
	h.mu.Unlock()
	for _, s := range targets {
		s.close()
	}
}

// readPump decodes envelopes and dispatches them. Blocks until the
// connection closes.
func (h *Hub) readPump(ctx context.Context, s *session) {
	defer s.conn.Close()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("ws: malformed envelope", "context", s.id, "err", err)
			continue
		}

		reply, err := h.rt.Handle(ctx, router.Origin{Context: s.id}, env)
		switch {
		case reply != nil:
			_ = s.Send(*reply)
		case err != nil && env.ReplyTo == "" && protocol.ExpectsResponse(env.Type):
			_ = s.Send(protocol.ReplyError(env, err))
		}
	}
}

// writePump drains send and forwards messages to conn. It also sends
// periodic ping frames. Shared by extractor sessions and stream subscribers.
func writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
