package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowpulse/flowpulse/server/internal/api"
	"github.com/flowpulse/flowpulse/server/internal/store"
)

// DefaultStreamInterval is how often Stream pushes the cache to subscribers.
const DefaultStreamInterval = 5 * time.Second

// Message is the JSON envelope sent to subscribers on every broadcast tick.
type Message struct {
	Event string              `json:"event"`
	Data  api.MetricsResponse `json:"data"`
}

// Stream pushes the snapshot cache to every subscriber on an interval. The
// summary view's watch mode reads it.
type Stream struct {
	cache    *store.Store
	interval time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	clients map[*subscriber]struct{}
}

// subscriber is one connected stream reader.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewStream creates a Stream reading from cache. A non-positive interval uses
// DefaultStreamInterval.
func NewStream(cache *store.Store, interval time.Duration) *Stream {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &Stream{
		cache:    cache,
		interval: interval,
		now:      time.Now,
		clients:  make(map[*subscriber]struct{}),
	}
}

// Run starts the broadcast ticker loop. Blocks until ctx is cancelled, then
// closes all subscriber connections.
func (st *Stream) Run(ctx context.Context) {
	t := time.NewTicker(st.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			st.closeAll()
			return
		case <-t.C:
			st.broadcast()
		}
	}
}

// ServeHTTP upgrades the connection, sends the current cache immediately,
// then keeps the subscriber on the broadcast list until it disconnects.
func (st *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &subscriber{conn: conn, send: make(chan []byte, sendBufSize)}
	st.register(c)
	defer st.unregister(c)

	if data, err := st.buildMessage(); err == nil {
		select {
		case c.send <- data:
		default:
		}
	}

	go writePump(c.conn, c.send)
	c.readPump()
}

// Count returns the number of connected subscribers.
func (st *Stream) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.clients)
}

// --- internal ---------------------------------------------------------------

func (st *Stream) register(c *subscriber) {
	st.mu.Lock()
	st.clients[c] = struct{}{}
	st.mu.Unlock()
}

func (st *Stream) unregister(c *subscriber) {
	st.mu.Lock()
	if _, ok := st.clients[c]; ok {
		delete(st.clients, c)
		close(c.send)
	}
	st.mu.Unlock()
}

func (st *Stream) broadcast() {
	data, err := st.buildMessage()
	if err != nil {
		return
	}

	st.mu.RLock()
	targets := make([]*subscriber, 0, len(st.clients))
	for c := range st.clients {
		targets = append(targets, c)
	}
	st.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// Outgoing buffer is full; drop the subscriber.
			st.unregister(c)
		}
	}
}

func (st *Stream) buildMessage() ([]byte, error) {
	return json.Marshal(Message{
		Event: "snapshot",
		Data:  api.BuildMetricsResponse(st.cache, st.now()),
	})
}

func (st *Stream) closeAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for c := range st.clients {
		close(c.send)
		delete(st.clients, c)
	}
}

// readPump discards inbound frames and keeps the pong deadline fresh.
// Blocks until the connection closes.
func (c *subscriber) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
