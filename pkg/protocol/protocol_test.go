package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/flowpulse/flowpulse/pkg/types"
)

func TestExpectsResponse(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{MetricsExtracted, false},
		{MetricsExtractionFailed, false},
		{GetMetrics, true},
		{AnalyzeTab, true},
		{ExtractMetrics, true},
		{OpenPopup, false},
	}
	for _, tc := range tests {
		if got := ExpectsResponse(tc.kind); got != tc.want {
			t.Errorf("ExpectsResponse(%s): got %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestKindWireStrings(t *testing.T) {
	// The type strings are shared with other processes and must not drift.
	want := map[Kind]string{
		MetricsExtracted:        "METRICS_EXTRACTED",
		MetricsExtractionFailed: "METRICS_EXTRACTION_FAILED",
		GetMetrics:              "GET_METRICS",
		AnalyzeTab:              "ANALYZE_TAB",
		ExtractMetrics:          "EXTRACT_METRICS",
		OpenPopup:               "OPEN_POPUP",
	}
	for k, s := range want {
		if string(k) != s {
			t.Errorf("kind %q: want %q", k, s)
		}
		if !Known(k) {
			t.Errorf("Known(%q): got false", k)
		}
	}
	if Known("PING") {
		t.Error("Known(PING): got true")
	}
}

func TestReply_CorrelatesRequest(t *testing.T) {
	req, err := New(ExtractMetrics, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if req.ID == "" {
		t.Fatal("request ID is empty")
	}
	if req.Payload != nil {
		t.Errorf("nil payload encoded as %s", req.Payload)
	}

	ms := types.MetricSet{Platform: types.PlatformN8N, ItemTotal: types.Int(7)}
	resp, err := Reply(req, ms)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if resp.ReplyTo != req.ID {
		t.Errorf("ReplyTo: got %q, want %q", resp.ReplyTo, req.ID)
	}
	if resp.ID == req.ID {
		t.Error("response reused the request ID")
	}

	var got types.MetricSet
	if err := resp.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ItemTotal == nil || *got.ItemTotal != 7 {
		t.Errorf("itemTotal: got %v", got.ItemTotal)
	}
}

func TestReplyError(t *testing.T) {
	req := Envelope{Type: AnalyzeTab, ID: "req-1"}
	resp := ReplyError(req, errors.New("context gone"))
	if resp.ReplyTo != "req-1" || resp.Error != "context gone" {
		t.Errorf("unexpected error reply: %+v", resp)
	}
}

func TestDecode_EmptyPayload(t *testing.T) {
	var ms types.MetricSet
	if err := (Envelope{Type: MetricsExtracted}).Decode(&ms); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestEnvelope_JSONFieldNames(t *testing.T) {
	env := Envelope{Type: GetMetrics, ID: "a", ReplyTo: "b"}
	data, _ := json.Marshal(env)
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != "GET_METRICS" || m["id"] != "a" || m["replyTo"] != "b" {
		t.Errorf("unexpected wire form: %s", data)
	}
}
