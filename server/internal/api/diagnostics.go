package api

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/flowpulse/flowpulse/pkg/types"
)

// DiagnosticHint is one human-readable insight about a platform's health.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label (≤ 5 words).
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *int `json:"value,omitempty"`
}

// vocabulary names a platform's usage unit and its automations.
type vocabulary struct {
	unit, items, paused string
}

var vocab = map[types.Platform]vocabulary{
	types.PlatformMake: {unit: "operations", items: "scenarios", paused: "paused"},
	types.PlatformN8N:  {unit: "executions", items: "workflows", paused: "inactive"},
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives hints from a cached snapshot. Hints are
// ordered critical first, then warnings, then info.
func computeDiagnostics(snap types.Snapshot, stale bool, now time.Time) []DiagnosticHint {
	ms := snap.MetricSet
	v, ok := vocab[ms.Platform]
	if !ok {
		v = vocabulary{unit: "units", items: "items", paused: "paused"}
	}

	var hints []DiagnosticHint

	if stale {
		hints = append(hints, DiagnosticHint{
			Key:   "stale",
			Level: "warning",
			Title: "Data is stale",
			Detail: fmt.Sprintf(
				"These numbers were captured %s. Open the dashboard tab again so the "+
					"extractor can take a fresh reading.",
				humanize.RelTime(snap.StoredAt, now, "ago", "from now")),
		})
	}

	if !ms.HasSignal() {
		hints = append(hints, DiagnosticHint{
			Key:   "no_data",
			Level: "critical",
			Title: "No data",
			Detail: fmt.Sprintf("Neither %s usage nor a %s count could be read from the page.",
				v.unit, v.items),
		})
		return sortHints(hints)
	}

	if pct, ok := types.Value(ms.UsagePercent); ok && pct > 50 {
		level := "info"
		switch {
		case pct > 90:
			level = "critical"
		case pct > 75:
			level = "warning"
		}
		used, _ := types.Value(ms.UsageCount)
		limit, _ := types.Value(ms.UsageLimit)
		hints = append(hints, DiagnosticHint{
			Key:   "usage",
			Level: level,
			Title: fmt.Sprintf("%d%% of %s used", pct, v.unit),
			Detail: fmt.Sprintf("%s of %s %s consumed this cycle.",
				humanize.Comma(int64(used)), humanize.Comma(int64(limit)), v.unit),
			Value: types.Int(pct),
		})
	}

	if rate, ok := types.Value(ms.ErrorRate); ok && rate > 0 {
		n, _ := types.Value(ms.ItemsInErrorState)
		level := "warning"
		if rate >= 20 {
			level = "critical"
		}
		hints = append(hints, DiagnosticHint{
			Key:    "errors",
			Level:  level,
			Title:  fmt.Sprintf("%d %s failing", n, v.items),
			Detail: fmt.Sprintf("%d%% of %s are in an error state.", rate, v.items),
			Value:  types.Int(rate),
		})
	}

	if n, ok := types.Value(ms.ItemsPaused); ok && n > 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "paused",
			Level:  "info",
			Title:  fmt.Sprintf("%d %s %s", n, v.items, v.paused),
			Detail: fmt.Sprintf("%d %s are %s and will not run until re-enabled.", n, v.items, v.paused),
			Value:  types.Int(n),
		})
	}

	if ms.Partial() {
		hints = append(hints, DiagnosticHint{
			Key:    "partial",
			Level:  "info",
			Title:  "Partial data",
			Detail: "Some fields could not be read from the page; the score treats them as healthy.",
		})
	}

	if len(hints) == 0 {
		score, _ := types.Value(ms.HealthScore)
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: fmt.Sprintf("Health score %d/100 with no usage pressure, errors or paused %s.", score, v.items),
			Value:  types.Int(score),
		})
	}
	return sortHints(hints)
}

func sortHints(h []DiagnosticHint) []DiagnosticHint {
	sort.SliceStable(h, func(i, j int) bool { return levelRank[h[i].Level] < levelRank[h[j].Level] })
	return h
}
