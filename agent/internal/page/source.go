package page

import (
	"context"

	"github.com/flowpulse/flowpulse/agent/internal/resolve"
)

// EventKind classifies a page event.
type EventKind int

const (
	// EventNavigated means the page location changed, or the page was
	// reloaded, and any extraction in progress is stale.
	EventNavigated EventKind = iota + 1
	// EventOpenPopup means the user asked for the summary view from the
	// in-page overlay.
	EventOpenPopup
)

func (k EventKind) String() string {
	switch k {
	case EventNavigated:
		return "navigated"
	case EventOpenPopup:
		return "open-popup"
	}
	return "unknown"
}

// Event is one notification from a Source.
type Event struct {
	Kind EventKind
	URL  string
}

// Source is a readable page.
type Source interface {
	// URL returns the current page location.
	URL() string
	// Snapshot copies and parses the current DOM.
	Snapshot(ctx context.Context) (*resolve.Document, error)
	// Events delivers navigation and popup notifications. The channel is
	// closed when the source stops.
	Events() <-chan Event
	Close() error
}

// emit delivers ev without blocking; a slow consumer loses events rather
// than stalling the page listener. Navigation events are idempotent for the
// consumer (a reset is a reset), so a dropped duplicate is harmless.
func emit(ch chan Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}
