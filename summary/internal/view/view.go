// Package view turns coordinator data into the summary a user reads: one
// block per platform with its health score, counts and freshness.
package view

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/flowpulse/flowpulse/pkg/protocol"
	"github.com/flowpulse/flowpulse/pkg/types"
)

// State is how a platform's data should be presented.
type State string

const (
	StateFresh   State = "fresh"
	StatePartial State = "partial"
	StateStale   State = "stale"
	StateNoData  State = "no data available"
)

// Entry is one platform's block in the summary.
type Entry struct {
	Platform types.Platform   `json:"platform"`
	State    State            `json:"state"`
	Metrics  *types.MetricSet `json:"metrics,omitempty"`
	StoredAt time.Time        `json:"storedAt,omitzero"`
	Color    types.Color      `json:"color,omitempty"`
	Note     string           `json:"note,omitempty"`
}

// Build merges the cached snapshot map with an optional fresh analyze
// result. A fresh result replaces the cached entry for its platform; a
// failure marker keeps any cached value but notes that the latest read came
// back empty. Every supported platform gets an entry.
func Build(cached protocol.MetricsMap, fresh *protocol.AnalyzeResult, ttl time.Duration, now time.Time) []Entry {
	if ttl <= 0 {
		ttl = types.SnapshotTTL
	}
	snaps := make(map[types.Platform]types.Snapshot, len(cached))
	for p, s := range cached {
		snaps[p] = s
	}

	notes := map[types.Platform]string{}
	if fresh != nil {
		switch {
		case fresh.Metrics != nil && fresh.Metrics.HasSignal():
			ms := fresh.Metrics.Clone()
			snaps[ms.Platform] = types.Snapshot{MetricSet: ms, StoredAt: now}
		case fresh.Failure != nil:
			notes[fresh.Failure.Platform] = "latest read found nothing on the page"
		}
	}

	out := make([]Entry, 0, len(types.Platforms))
	for _, p := range types.Platforms {
		e := Entry{Platform: p, Note: notes[p]}
		snap, ok := snaps[p]
		if !ok || !snap.MetricSet.HasSignal() {
			e.State = StateNoData
			out = append(out, e)
			continue
		}
		ms := snap.MetricSet
		e.Metrics = &ms
		e.StoredAt = snap.StoredAt
		if score, ok := types.Value(ms.HealthScore); ok {
			e.Color = types.ColorFor(score)
		}
		switch {
		case now.Sub(snap.StoredAt) >= ttl:
			e.State = StateStale
		case ms.Partial():
			e.State = StatePartial
		default:
			e.State = StateFresh
		}
		out = append(out, e)
	}
	return out
}

// vocabulary names a platform's usage unit and automation noun.
var vocabulary = map[types.Platform][2]string{
	types.PlatformMake: {"operations", "scenarios"},
	types.PlatformN8N:  {"executions", "workflows"},
}

// Render writes entries as plain text.
func Render(w io.Writer, entries []Entry, now time.Time) error {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		renderEntry(&b, e, now)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderEntry(b *strings.Builder, e Entry, now time.Time) {
	name := e.Platform.DisplayName()
	if e.Metrics == nil {
		fmt.Fprintf(b, "%s  %s\n", name, StateNoData)
		if e.Note != "" {
			fmt.Fprintf(b, "  %s\n", e.Note)
		}
		return
	}
	ms := e.Metrics
	words := vocabulary[e.Platform]

	score := "score unknown"
	if v, ok := types.Value(ms.HealthScore); ok {
		score = fmt.Sprintf("%d/100 (%s)", v, e.Color)
	}
	header := name + "  " + score
	if e.State != StateFresh {
		header += "  " + string(e.State)
	}
	fmt.Fprintln(b, header)

	if used, ok := types.Value(ms.UsageCount); ok {
		line := humanize.Comma(int64(used))
		if limit, ok := types.Value(ms.UsageLimit); ok {
			line += " / " + humanize.Comma(int64(limit))
		}
		if pct, ok := types.Value(ms.UsagePercent); ok {
			line += fmt.Sprintf(" (%d%%)", pct)
		}
		fmt.Fprintf(b, "  %-11s %s\n", words[0], line)
	}

	if counts := itemCounts(ms); counts != "" {
		fmt.Fprintf(b, "  %-11s %s\n", words[1], counts)
	}

	if labels := joinNonEmpty(" / ", ms.TeamLabel, ms.PlanLabel); labels != "" {
		fmt.Fprintf(b, "  %-11s %s\n", "account", labels)
	}

	fmt.Fprintf(b, "  %-11s %s\n", "captured", humanize.RelTime(e.StoredAt, now, "ago", "from now"))
	if e.Note != "" {
		fmt.Fprintf(b, "  %s\n", e.Note)
	}
}

func itemCounts(ms *types.MetricSet) string {
	stalled := "paused"
	if ms.Platform == types.PlatformN8N {
		stalled = "inactive"
	}
	var parts []string
	add := func(p *int, label string) {
		if v, ok := types.Value(p); ok {
			parts = append(parts, fmt.Sprintf("%s %s", humanize.Comma(int64(v)), label))
		}
	}
	add(ms.ItemTotal, "total")
	add(ms.ItemsActive, "active")
	add(ms.ItemsInErrorState, "in error")
	add(ms.ItemsPaused, stalled)
	return strings.Join(parts, ", ")
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
