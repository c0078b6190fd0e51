package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flowpulse/flowpulse/pkg/protocol"
)

// Session is one connected extractor context.
type Session interface {
	ID() string
	// URL is the page the extractor is attached to.
	URL() string
	// Send queues env for delivery. It fails when the session is closed or
	// cannot keep up.
	Send(env protocol.Envelope) error
}

// Sessions is the registry of live extractor contexts and of requests
// awaiting their replies.
type Sessions struct {
	mu      sync.Mutex
	seq     uint64
	live    map[string]*sessionEntry
	pending map[string]*pendingRequest
}

type sessionEntry struct {
	sess   Session
	active uint64 // seq of last activity
}

type pendingRequest struct {
	session string
	reply   chan protocol.Envelope
	gone    chan struct{}
}

// NewSessions returns an empty registry.
func NewSessions() *Sessions {
	return &Sessions{
		live:    make(map[string]*sessionEntry),
		pending: make(map[string]*pendingRequest),
	}
}

// Add registers s and makes it the active context.
func (r *Sessions) Add(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.live[s.ID()] = &sessionEntry{sess: s, active: r.seq}
	slog.Info("router: extractor connected", "context", s.ID(), "url", s.URL(), "sessions", len(r.live))
}

// Remove drops the session and fails every request waiting on it.
func (r *Sessions) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[id]; !ok {
		return
	}
	delete(r.live, id)
	for reqID, p := range r.pending {
		if p.session == id {
			close(p.gone)
			delete(r.pending, reqID)
		}
	}
	slog.Info("router: extractor disconnected", "context", id, "sessions", len(r.live))
}

// Touch marks id as the most recently active context.
func (r *Sessions) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.live[id]; ok {
		r.seq++
		e.active = r.seq
	}
}

// Active returns the most recently active session.
func (r *Sessions) Active() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *sessionEntry
	for _, e := range r.live {
		if best == nil || e.active > best.active {
			best = e
		}
	}
	if best == nil {
		return nil, false
	}
	return best.sess, true
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Request sends req to session id and waits for the envelope whose ReplyTo
// matches req.ID.
func (r *Sessions) Request(ctx context.Context, id string, req protocol.Envelope) (protocol.Envelope, error) {
	r.mu.Lock()
	e, ok := r.live[id]
	if !ok {
		r.mu.Unlock()
		return protocol.Envelope{}, ErrContextGone
	}
	p := &pendingRequest{
		session: id,
		reply:   make(chan protocol.Envelope, 1),
		gone:    make(chan struct{}),
	}
	r.pending[req.ID] = p
	r.mu.Unlock()

	if err := e.sess.Send(req); err != nil {
		r.forget(req.ID)
		return protocol.Envelope{}, fmt.Errorf("%w: %v", ErrContextGone, err)
	}

	select {
	case env := <-p.reply:
		return env, nil
	case <-p.gone:
		return protocol.Envelope{}, ErrContextGone
	case <-ctx.Done():
		r.forget(req.ID)
		return protocol.Envelope{}, ctx.Err()
	}
}

// Deliver routes a reply from session id to its waiting request. It
// reports false for replies nobody is waiting for and for replies sent by
// a session other than the one the request went to.
func (r *Sessions) Deliver(id string, env protocol.Envelope) bool {
	r.mu.Lock()
	p, ok := r.pending[env.ReplyTo]
	if ok && p.session != id {
		r.mu.Unlock()
		slog.Warn("router: reply from wrong context",
			"reply_to", env.ReplyTo, "want", p.session, "got", id)
		return false
	}
	if ok {
		delete(r.pending, env.ReplyTo)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	p.reply <- env
	return true
}

func (r *Sessions) forget(reqID string) {
	r.mu.Lock()
	delete(r.pending, reqID)
	r.mu.Unlock()
}
