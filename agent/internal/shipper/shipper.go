package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/flowpulse/flowpulse/agent/internal/config"
	"github.com/flowpulse/flowpulse/pkg/protocol"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	backoffJitter     = 0.25
	writeTimeout      = 10 * time.Second

	// ExtractorPath is the coordinator's websocket endpoint for extractors.
	ExtractorPath = "/ws/extractor"
)

// ErrNotConnected is returned by Reply when there is no live connection to
// answer on. Replies are bound to the connection their request came from.
var ErrNotConnected = errors.New("shipper: not connected")

// Shipper buffers envelopes and ships them to the coordinator over a
// websocket. Send is non-blocking; when the buffer is full the oldest
// envelope is evicted. Run must be called in a goroutine to drain the
// buffer and handle reconnection.
type Shipper struct {
	base     string
	pageURL  func() string
	auth     config.AuthConfig
	buf      chan protocol.Envelope
	requests chan protocol.Envelope
	dialFn   dialFunc // injectable for tests

	mu   sync.Mutex
	conn *websocket.Conn
}

// dialFunc opens a websocket to u.
type dialFunc func(ctx context.Context, u string, h http.Header) (*websocket.Conn, error)

// New creates a Shipper. pageURL is consulted on every (re)connect so the
// coordinator sees the page the extractor is currently attached to.
func New(cfg config.AgentConfig, pageURL func() string) *Shipper {
	return &Shipper{
		base:     strings.TrimRight(cfg.CoordinatorURL, "/"),
		pageURL:  pageURL,
		auth:     cfg.Link.Auth,
		buf:      make(chan protocol.Envelope, cfg.Link.BufferSize),
		requests: make(chan protocol.Envelope, cfg.Link.BufferSize),
		dialFn:   defaultDial,
	}
}

// Send enqueues a fire-and-forget envelope.
// If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Send(env protocol.Envelope) {
	for {
		select {
		case s.buf <- env:
			return
		default:
		}
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest message",
				"type", old.Type, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Requests delivers EXTRACT_METRICS requests from the coordinator.
func (s *Shipper) Requests() <-chan protocol.Envelope { return s.requests }

// Reply answers a request on the live connection. Replies are never
// buffered: the coordinator forgets requests from a dropped connection.
func (s *Shipper) Reply(env protocol.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.write(s.conn, env); err != nil {
		return fmt.Errorf("shipper: reply: %w", err)
	}
	return nil
}

// Connected reports whether a coordinator connection is up.
func (s *Shipper) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Run drains the buffer, sending envelopes to the coordinator.
// It reconnects with exponential backoff when the connection is lost.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		endpoint := s.endpoint()
		conn, err := s.dialFn(ctx, endpoint, s.header())
		if err != nil {
			wait := bo.NextBackOff()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", endpoint,
				"err", err,
				"retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		slog.Info("shipper: connected", "endpoint", endpoint)
		bo.Reset()

		err = s.serve(ctx, conn)

		if ctx.Err() != nil {
			return
		}

		wait := bo.NextBackOff()
		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", endpoint,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// serve owns one connection: a reader goroutine forwards requests while the
// calling goroutine drains the buffer. It returns when either side fails.
func (s *Shipper) serve(ctx context.Context, conn *websocket.Conn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	readErr := make(chan error, 1)
	go func() { readErr <- s.read(ctx, conn) }()

	err := s.drain(ctx, conn, readErr)

	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
	conn.Close()
	return err
}

// drain sends buffered envelopes until the connection fails or ctx is
// cancelled.
func (s *Shipper) drain(ctx context.Context, conn *websocket.Conn, readErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			s.mu.Unlock()
			return nil

		case err := <-readErr:
			return err

		case env := <-s.buf:
			s.mu.Lock()
			err := s.write(conn, env)
			s.mu.Unlock()
			if err != nil {
				// Put the envelope back if there's room; otherwise the next
				// extraction supersedes it.
				select {
				case s.buf <- env:
				default:
				}
				return fmt.Errorf("send: %w", err)
			}
			slog.Debug("shipper: message delivered", "type", env.Type, "id", env.ID)
		}
	}
}

// read forwards coordinator requests until the connection closes.
func (s *Shipper) read(ctx context.Context, conn *websocket.Conn) error {
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if env.Type != protocol.ExtractMetrics || env.ReplyTo != "" {
			slog.Debug("shipper: ignoring message", "type", env.Type, "reply_to", env.ReplyTo)
			continue
		}
		select {
		case s.requests <- env:
		case <-ctx.Done():
			return nil
		default:
			slog.Warn("shipper: request queue full, dropping", "id", env.ID)
		}
	}
}

// write must be called with s.mu held; gorilla connections allow one
// concurrent writer.
func (s *Shipper) write(conn *websocket.Conn, env protocol.Envelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(env)
}

func (s *Shipper) endpoint() string {
	u := s.base + ExtractorPath
	if s.pageURL == nil {
		return u
	}
	if p := s.pageURL(); p != "" {
		u += "?url=" + url.QueryEscape(p)
	}
	return u
}

func (s *Shipper) header() http.Header {
	h := http.Header{}
	if s.auth.Mode == "apikey" {
		if key := s.auth.Key(); key != "" {
			h.Set(s.auth.Header, key)
		}
	}
	return h
}

func defaultDial(ctx context.Context, u string, h http.Header) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, h)
	return conn, err
}

// newBackoff returns the reconnect schedule: 1s doubling to 60s, ±25% jitter.
func newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = backoffInitial
	bo.MaxInterval = backoffMax
	bo.Multiplier = backoffMultiplier
	bo.RandomizationFactor = backoffJitter
	bo.Reset()
	return bo
}
