package api

import (
	"strings"
	"testing"
	"time"

	"github.com/flowpulse/flowpulse/pkg/types"
)

func TestComputeDiagnostics(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	full := func(platform types.Platform, used, limit, total, errs, paused int) types.MetricSet {
		ms := types.MetricSet{
			Platform:          platform,
			UsageCount:        types.Int(used),
			UsageLimit:        types.Int(limit),
			ItemTotal:         types.Int(total),
			ItemsInErrorState: types.Int(errs),
			ItemsPaused:       types.Int(paused),
			HealthScore:       types.Int(100),
		}
		ms.Derive()
		return ms
	}

	tests := []struct {
		name      string
		ms        types.MetricSet
		stale     bool
		wantKeys  string
		wantLevel string // level of the first hint
	}{
		{"all clear", full(types.PlatformMake, 100, 10000, 10, 0, 0), false, "healthy", "ok"},
		{"no data", types.MetricSet{Platform: types.PlatformN8N}, false, "no_data", "critical"},
		{"no data and stale", types.MetricSet{Platform: types.PlatformN8N}, true, "no_data,stale", "critical"},
		{"usage critical", full(types.PlatformMake, 9500, 10000, 10, 0, 0), false, "usage", "critical"},
		{"usage warning", full(types.PlatformMake, 8000, 10000, 10, 0, 0), false, "usage", "warning"},
		{"usage info", full(types.PlatformMake, 6000, 10000, 10, 0, 0), false, "usage", "info"},
		{"many errors", full(types.PlatformN8N, 10, 100, 10, 5, 0), false, "errors", "critical"},
		{"partial", types.MetricSet{Platform: types.PlatformMake, ItemTotal: types.Int(3)}, false, "partial", "info"},
		{"stale healthy", full(types.PlatformMake, 100, 10000, 10, 0, 0), true, "stale", "warning"},
		{"critical first", full(types.PlatformN8N, 9500, 10000, 10, 1, 2), false, "usage,errors,paused", "critical"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := types.Snapshot{MetricSet: tt.ms, StoredAt: now.Add(-time.Minute)}
			hints := computeDiagnostics(snap, tt.stale, now)
			var keys []string
			for _, h := range hints {
				keys = append(keys, h.Key)
			}
			if got := strings.Join(keys, ","); got != tt.wantKeys {
				t.Errorf("keys = %s, want %s", got, tt.wantKeys)
			}
			if len(hints) > 0 && hints[0].Level != tt.wantLevel {
				t.Errorf("first level = %q, want %q", hints[0].Level, tt.wantLevel)
			}
		})
	}
}

func TestComputeDiagnostics_PlatformVocabulary(t *testing.T) {
	ms := types.MetricSet{
		Platform:          types.PlatformN8N,
		ItemTotal:         types.Int(10),
		ItemsInErrorState: types.Int(0),
		ItemsPaused:       types.Int(4),
	}
	hints := computeDiagnostics(types.Snapshot{MetricSet: ms}, false, time.Now())
	var paused *DiagnosticHint
	for i := range hints {
		if hints[i].Key == "paused" {
			paused = &hints[i]
		}
	}
	if paused == nil {
		t.Fatal("no paused hint")
	}
	if paused.Title != "4 workflows inactive" {
		t.Errorf("title = %q", paused.Title)
	}
}
