package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDerive_ScenarioA(t *testing.T) {
	ms := MetricSet{
		UsageCount:        Int(1234),
		UsageLimit:        Int(10000),
		ItemTotal:         Int(15),
		ItemsInErrorState: Int(2),
		ItemsPaused:       Int(3),
	}
	ms.Derive()

	if got, ok := Value(ms.UsagePercent); !ok || got != 12 {
		t.Errorf("usagePercent: got %v (present=%v), want 12", got, ok)
	}
	if got, ok := Value(ms.ErrorRate); !ok || got != 13 {
		t.Errorf("errorRate: got %v (present=%v), want 13", got, ok)
	}
}

func TestDerive_AbsentOperands(t *testing.T) {
	tests := []struct {
		name        string
		ms          MetricSet
		wantUsage   bool
		wantErrRate bool
	}{
		{"nothing", MetricSet{}, false, false},
		{"count without limit", MetricSet{UsageCount: Int(10)}, false, false},
		{"zero limit", MetricSet{UsageCount: Int(10), UsageLimit: Int(0)}, false, false},
		{"zero total", MetricSet{ItemTotal: Int(0), ItemsInErrorState: Int(0)}, false, false},
		{"errors without total", MetricSet{ItemsInErrorState: Int(2)}, false, false},
		{"both present", MetricSet{
			UsageCount: Int(0), UsageLimit: Int(100),
			ItemTotal: Int(4), ItemsInErrorState: Int(0),
		}, true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ms := tc.ms
			ms.UsagePercent = Int(99) // stale value must not survive Derive
			ms.Derive()
			if (ms.UsagePercent != nil) != tc.wantUsage {
				t.Errorf("usagePercent present: got %v, want %v", ms.UsagePercent != nil, tc.wantUsage)
			}
			if (ms.ErrorRate != nil) != tc.wantErrRate {
				t.Errorf("errorRate present: got %v, want %v", ms.ErrorRate != nil, tc.wantErrRate)
			}
		})
	}
}

func TestMetricSet_AbsentEncodesAsNull(t *testing.T) {
	ms := MetricSet{Platform: PlatformMake, ItemTotal: Int(0)}
	data, err := json.Marshal(ms)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"itemTotal":0`) {
		t.Errorf("measured zero lost: %s", s)
	}
	if !strings.Contains(s, `"usageCount":null`) {
		t.Errorf("absent field not null: %s", s)
	}
}

func TestHasSignal(t *testing.T) {
	if (&MetricSet{}).HasSignal() {
		t.Error("empty set: expected no signal")
	}
	if !(&MetricSet{ItemTotal: Int(0)}).HasSignal() {
		t.Error("itemTotal=0 is a measured value and counts as signal")
	}
	if !(&MetricSet{UsageCount: Int(5)}).HasSignal() {
		t.Error("usageCount present: expected signal")
	}
	if (&MetricSet{TeamLabel: "Acme"}).HasSignal() {
		t.Error("labels alone are not signal")
	}
}

func TestClone_IsDeep(t *testing.T) {
	orig := MetricSet{ItemTotal: Int(3)}
	cp := orig.Clone()
	*cp.ItemTotal = 9
	if *orig.ItemTotal != 3 {
		t.Errorf("clone aliases original: got %d", *orig.ItemTotal)
	}
}

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want Platform
	}{
		{"https://eu1.make.com/123/scenarios", PlatformMake},
		{"https://www.make.com/en/organization/1/dashboard", PlatformMake},
		{"https://acme.app.n8n.cloud/home/workflows", PlatformN8N},
		{"http://localhost:5678/home/workflows", PlatformN8N},
		{"https://n8n.internal.example.com/workflows", PlatformN8N},
		{"https://notmake.com/", PlatformUnknown},
		{"not a url", PlatformUnknown},
		{"", PlatformUnknown},
	}
	for _, tc := range tests {
		if got := DetectPlatform(tc.url); got != tc.want {
			t.Errorf("DetectPlatform(%q): got %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestSnapshot_StaleAt(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Snapshot{StoredAt: base}
	if s.StaleAt(base.Add(SnapshotTTL - time.Second)) {
		t.Error("4m59s old: expected fresh")
	}
	if !s.StaleAt(base.Add(SnapshotTTL)) {
		t.Error("exactly 5m old: expected stale")
	}
}

func TestColorFor(t *testing.T) {
	tests := []struct {
		score int
		want  Color
	}{
		{100, ColorGreen},
		{80, ColorGreen},
		{79, ColorYellow},
		{60, ColorYellow},
		{59, ColorOrange},
		{40, ColorOrange},
		{39, ColorRed},
		{0, ColorRed},
	}
	for _, tc := range tests {
		if got := ColorFor(tc.score); got != tc.want {
			t.Errorf("ColorFor(%d): got %s, want %s", tc.score, got, tc.want)
		}
	}
}
