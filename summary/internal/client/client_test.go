package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flowpulse/flowpulse/pkg/protocol"
	"github.com/flowpulse/flowpulse/pkg/types"
)

// coordinator answers every envelope with respond(req).
func coordinator(t *testing.T, respond func(w http.ResponseWriter, req protocol.Envelope)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != MessagesPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req protocol.Envelope
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad envelope", http.StatusBadRequest)
			return
		}
		respond(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, env protocol.Envelope) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		t.Error(err)
	}
}

func reply(t *testing.T, req protocol.Envelope, payload any) protocol.Envelope {
	t.Helper()
	env, err := protocol.Reply(req, payload)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestMetrics(t *testing.T) {
	stored := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := coordinator(t, func(w http.ResponseWriter, req protocol.Envelope) {
		if req.Type != protocol.GetMetrics {
			t.Errorf("type = %s, want GET_METRICS", req.Type)
		}
		m := protocol.MetricsMap{types.PlatformMake: {
			MetricSet: types.MetricSet{Platform: types.PlatformMake, ItemTotal: types.Int(15)},
			StoredAt:  stored,
		}}
		writeEnvelope(t, w, http.StatusOK, reply(t, req, m))
	})

	m, err := New(srv.URL, "x-api-key", "").Metrics(context.Background())
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	snap, ok := m[types.PlatformMake]
	if !ok {
		t.Fatalf("map = %v, want make entry", m)
	}
	if !snap.StoredAt.Equal(stored) {
		t.Errorf("storedAt = %v, want %v", snap.StoredAt, stored)
	}
}

func TestSend_APIKeyHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("x-flow-key")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	env, _ := protocol.New(protocol.OpenPopup, nil)
	if _, err := New(srv.URL+"/", "x-flow-key", "secret").Send(context.Background(), env); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != "secret" {
		t.Errorf("header = %q, want secret", got)
	}
}

func TestAnalyze(t *testing.T) {
	srv := coordinator(t, func(w http.ResponseWriter, req protocol.Envelope) {
		ms := types.MetricSet{Platform: types.PlatformN8N, ItemTotal: types.Int(4)}
		writeEnvelope(t, w, http.StatusOK, reply(t, req, protocol.AnalyzeResult{Metrics: &ms}))
	})

	res, err := New(srv.URL, "x-api-key", "").Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Metrics == nil || res.Metrics.Platform != types.PlatformN8N {
		t.Errorf("result = %+v", res)
	}
}

func TestAnalyze_NoExtractor(t *testing.T) {
	srv := coordinator(t, func(w http.ResponseWriter, req protocol.Envelope) {
		writeEnvelope(t, w, http.StatusServiceUnavailable, protocol.ReplyError(req, errors.New("no active extractor context")))
	})

	_, err := New(srv.URL, "x-api-key", "").Analyze(context.Background())
	if !errors.Is(err, ErrNoExtractor) {
		t.Errorf("err = %v, want ErrNoExtractor", err)
	}
}

func TestAnalyze_GatewayError(t *testing.T) {
	srv := coordinator(t, func(w http.ResponseWriter, req protocol.Envelope) {
		writeEnvelope(t, w, http.StatusBadGateway, protocol.ReplyError(req, errors.New("extractor context is gone")))
	})

	_, err := New(srv.URL, "x-api-key", "").Analyze(context.Background())
	if err == nil || !strings.Contains(err.Error(), "extractor context is gone") {
		t.Errorf("err = %v, want relayed message", err)
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := coordinator(t, func(w http.ResponseWriter, req protocol.Envelope) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL, "x-api-key", "").Analyze(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestRequest_MismatchedReply(t *testing.T) {
	srv := coordinator(t, func(w http.ResponseWriter, req protocol.Envelope) {
		other, _ := protocol.New(protocol.GetMetrics, nil)
		writeEnvelope(t, w, http.StatusOK, reply(t, other, protocol.MetricsMap{}))
	})

	if _, err := New(srv.URL, "x-api-key", "").Metrics(context.Background()); err == nil {
		t.Fatal("expected error for a reply to another request")
	}
}
