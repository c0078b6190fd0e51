// Package indicator holds the coordinator's ambient status indicator: a
// short text and a colour per extractor context, shown without opening the
// summary view.
package indicator

import (
	"log/slog"
	"maps"
	"strconv"
	"sync"

	"github.com/flowpulse/flowpulse/pkg/types"
)

// Indicator sets the badge for one context. Empty text clears it.
type Indicator interface {
	SetIndicator(contextID, text string, color types.Color)
}

// Badge is one context's indicator state.
type Badge struct {
	Text  string      `json:"text"`
	Color types.Color `json:"color"`
}

// For derives the badge for ms: the health score in its band colour, or an
// empty badge when no score is known.
func For(ms types.MetricSet) Badge {
	score, ok := types.Value(ms.HealthScore)
	if !ok {
		return Badge{}
	}
	return Badge{Text: strconv.Itoa(score), Color: types.ColorFor(score)}
}

// Board is an in-memory Indicator that logs every change.
type Board struct {
	mu     sync.RWMutex
	badges map[string]Badge
}

// NewBoard returns an empty Board.
func NewBoard() *Board {
	return &Board{badges: make(map[string]Badge)}
}

// SetIndicator implements Indicator.
func (b *Board) SetIndicator(contextID, text string, color types.Color) {
	b.mu.Lock()
	prev, had := b.badges[contextID]
	if text == "" {
		delete(b.badges, contextID)
	} else {
		b.badges[contextID] = Badge{Text: text, Color: color}
	}
	b.mu.Unlock()

	switch {
	case text == "" && had:
		slog.Info("indicator: cleared", "context", contextID)
	case text != "" && (prev.Text != text || prev.Color != color):
		slog.Info("indicator: set", "context", contextID, "text", text, "color", color)
	}
}

// Get returns the badge for contextID.
func (b *Board) Get(contextID string) (Badge, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bd, ok := b.badges[contextID]
	return bd, ok
}

// All returns a copy of every visible badge.
func (b *Board) All() map[string]Badge {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.badges)
}
