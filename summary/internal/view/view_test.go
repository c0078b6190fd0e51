package view

import (
	"strings"
	"testing"
	"time"

	"github.com/flowpulse/flowpulse/pkg/protocol"
	"github.com/flowpulse/flowpulse/pkg/types"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func scenarioA() types.MetricSet {
	ms := types.MetricSet{
		Platform:          types.PlatformMake,
		UsageCount:        types.Int(1234),
		UsageLimit:        types.Int(10000),
		ItemTotal:         types.Int(15),
		ItemsActive:       types.Int(10),
		ItemsInErrorState: types.Int(2),
		ItemsPaused:       types.Int(3),
		HealthScore:       types.Int(54),
	}
	ms.Derive()
	return ms
}

func byPlatform(entries []Entry) map[types.Platform]Entry {
	m := make(map[types.Platform]Entry, len(entries))
	for _, e := range entries {
		m[e.Platform] = e
	}
	return m
}

func TestBuild_States(t *testing.T) {
	cached := protocol.MetricsMap{
		types.PlatformMake: {MetricSet: scenarioA(), StoredAt: now.Add(-time.Minute)},
		types.PlatformN8N: {
			MetricSet: types.MetricSet{Platform: types.PlatformN8N, ItemTotal: types.Int(4)},
			StoredAt:  now.Add(-time.Minute),
		},
	}
	got := byPlatform(Build(cached, nil, 0, now))
	if got[types.PlatformMake].State != StateFresh {
		t.Errorf("make state = %q, want fresh", got[types.PlatformMake].State)
	}
	if got[types.PlatformMake].Color != types.ColorOrange {
		t.Errorf("make color = %q, want orange", got[types.PlatformMake].Color)
	}
	if got[types.PlatformN8N].State != StatePartial {
		t.Errorf("n8n state = %q, want partial", got[types.PlatformN8N].State)
	}
}

func TestBuild_StaleBoundary(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want State
	}{
		{4*time.Minute + 59*time.Second, StateFresh},
		{5 * time.Minute, StateStale},
		{time.Hour, StateStale},
	}
	for _, tt := range tests {
		cached := protocol.MetricsMap{types.PlatformMake: {MetricSet: scenarioA(), StoredAt: now.Add(-tt.age)}}
		e := byPlatform(Build(cached, nil, 5*time.Minute, now))[types.PlatformMake]
		if e.State != tt.want {
			t.Errorf("age %v: state = %q, want %q", tt.age, e.State, tt.want)
		}
	}
}

func TestBuild_NoData(t *testing.T) {
	cached := protocol.MetricsMap{
		types.PlatformN8N: {MetricSet: types.MetricSet{Platform: types.PlatformN8N}, StoredAt: now},
	}
	entries := Build(cached, nil, 0, now)
	if len(entries) != len(types.Platforms) {
		t.Fatalf("entries = %d, want %d", len(entries), len(types.Platforms))
	}
	for _, e := range entries {
		if e.State != StateNoData || e.Metrics != nil {
			t.Errorf("%s: state = %q metrics = %v, want no data", e.Platform, e.State, e.Metrics)
		}
	}
}

func TestBuild_FreshResultWins(t *testing.T) {
	cached := protocol.MetricsMap{
		types.PlatformMake: {MetricSet: types.MetricSet{Platform: types.PlatformMake, ItemTotal: types.Int(1)}, StoredAt: now.Add(-time.Hour)},
	}
	ms := scenarioA()
	e := byPlatform(Build(cached, &protocol.AnalyzeResult{Metrics: &ms}, 0, now))[types.PlatformMake]
	if e.State != StateFresh {
		t.Errorf("state = %q, want fresh", e.State)
	}
	if got, _ := types.Value(e.Metrics.ItemTotal); got != 15 {
		t.Errorf("itemTotal = %d, want 15 from the fresh result", got)
	}
	if !e.StoredAt.Equal(now) {
		t.Errorf("storedAt = %v, want now", e.StoredAt)
	}
}

func TestBuild_FailureMarkerKeepsCache(t *testing.T) {
	cached := protocol.MetricsMap{
		types.PlatformMake: {MetricSet: scenarioA(), StoredAt: now.Add(-time.Hour)},
	}
	fresh := &protocol.AnalyzeResult{Failure: &protocol.FailurePayload{Platform: types.PlatformMake}}
	e := byPlatform(Build(cached, fresh, 0, now))[types.PlatformMake]
	if e.State != StateStale {
		t.Errorf("state = %q, want stale", e.State)
	}
	if e.Note == "" {
		t.Error("note is empty, want the failed-read note")
	}
}

func TestBuild_DoesNotAliasFreshResult(t *testing.T) {
	ms := scenarioA()
	e := byPlatform(Build(nil, &protocol.AnalyzeResult{Metrics: &ms}, 0, now))[types.PlatformMake]
	*ms.ItemTotal = 99
	if got, _ := types.Value(e.Metrics.ItemTotal); got != 15 {
		t.Errorf("itemTotal = %d after mutating the input, want 15", got)
	}
}

func TestRender(t *testing.T) {
	cached := protocol.MetricsMap{
		types.PlatformMake: {MetricSet: scenarioA(), StoredAt: now.Add(-3 * time.Minute)},
	}
	var b strings.Builder
	if err := Render(&b, Build(cached, nil, 0, now), now); err != nil {
		t.Fatal(err)
	}
	want := "Make  54/100 (orange)\n" +
		"  operations  1,234 / 10,000 (12%)\n" +
		"  scenarios   15 total, 10 active, 2 in error, 3 paused\n" +
		"  captured    3 minutes ago\n" +
		"\n" +
		"n8n  no data available\n"
	if got := b.String(); got != want {
		t.Errorf("Render =\n%s\nwant\n%s", got, want)
	}
}

func TestRender_StaleAndPartial(t *testing.T) {
	cached := protocol.MetricsMap{
		types.PlatformN8N: {
			MetricSet: types.MetricSet{
				Platform:    types.PlatformN8N,
				ItemTotal:   types.Int(12),
				ItemsPaused: types.Int(5),
				TeamLabel:   "Ops",
				PlanLabel:   "Pro",
				HealthScore: types.Int(90),
			},
			StoredAt: now.Add(-2 * time.Hour),
		},
	}
	var b strings.Builder
	if err := Render(&b, Build(cached, nil, 0, now), now); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{
		"n8n  90/100 (green)  stale",
		"workflows   12 total, 5 inactive",
		"account     Ops / Pro",
		"captured    2 hours ago",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
