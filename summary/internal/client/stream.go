package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowpulse/flowpulse/pkg/protocol"
	"github.com/flowpulse/flowpulse/pkg/types"
)

// StreamPath is the coordinator endpoint that pushes the cache on an
// interval.
const StreamPath = "/ws/stream"

const maxFrameBytes = 1 << 20

// streamFrame holds the parts of a stream push the summary needs.
type streamFrame struct {
	Event string `json:"event"`
	Data  struct {
		Platforms []struct {
			Platform types.Platform  `json:"platform"`
			Metrics  types.MetricSet `json:"metrics"`
			StoredAt time.Time       `json:"stored_at"`
		} `json:"platforms"`
	} `json:"data"`
}

func (f streamFrame) snapshots() protocol.MetricsMap {
	m := make(protocol.MetricsMap, len(f.Data.Platforms))
	for _, p := range f.Data.Platforms {
		m[p.Platform] = types.Snapshot{MetricSet: p.Metrics, StoredAt: p.StoredAt}
	}
	return m
}

// Watch subscribes to the coordinator's stream and calls fn with the
// snapshot map of every push. It returns nil once ctx ends and an error
// when the dial fails or the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(protocol.MetricsMap)) error {
	u, err := c.streamURL()
	if err != nil {
		return err
	}
	header := http.Header{}
	if c.key != "" {
		header.Set(c.header, c.key)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("client: dial stream: status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("client: dial stream: %w", err)
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("client: read stream: %w", err)
		}
		var f streamFrame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Warn("client: malformed stream frame", "err", err)
			continue
		}
		fn(f.snapshots())
	}
}

// streamURL maps the coordinator base URL onto its websocket scheme.
func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.base + StreamPath)
	if err != nil {
		return "", fmt.Errorf("client: stream url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("client: stream url: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
