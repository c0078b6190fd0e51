// Package client talks to the coordinator on behalf of the summary view:
// envelopes go to the message endpoint, and Watch follows the metrics
// stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowpulse/flowpulse/pkg/protocol"
)

// MessagesPath is the coordinator endpoint envelopes are posted to.
const MessagesPath = "/api/v1/messages"

const maxReplyBytes = 1 << 20

// ErrNoExtractor means the coordinator has no connected extractor to
// analyze.
var ErrNoExtractor = errors.New("client: no extractor connected")

// Client posts protocol envelopes to a coordinator.
type Client struct {
	base   string
	header string
	key    string
	http   *http.Client
}

// New returns a Client for the coordinator at baseURL. When key is non-empty
// it is sent in header on every request.
func New(baseURL, header, key string) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		header: header,
		key:    key,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Metrics sends GET_METRICS and returns the coordinator's snapshot map.
func (c *Client) Metrics(ctx context.Context) (protocol.MetricsMap, error) {
	reply, err := c.request(ctx, protocol.GetMetrics)
	if err != nil {
		return nil, err
	}
	var m protocol.MetricsMap
	if len(reply.Payload) == 0 {
		return protocol.MetricsMap{}, nil
	}
	if err := reply.Decode(&m); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	return m, nil
}

// Analyze sends ANALYZE_TAB and returns the extractor's fresh result. The
// caller bounds the wait through ctx.
func (c *Client) Analyze(ctx context.Context) (protocol.AnalyzeResult, error) {
	var res protocol.AnalyzeResult
	reply, err := c.request(ctx, protocol.AnalyzeTab)
	if err != nil {
		return res, err
	}
	if err := reply.Decode(&res); err != nil {
		return res, fmt.Errorf("client: %w", err)
	}
	return res, nil
}

// Send posts env and returns the reply envelope. A 202 (fire-and-forget)
// returns a zero envelope.
func (c *Client) Send(ctx context.Context, env protocol.Envelope) (protocol.Envelope, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("client: encode envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+MessagesPath, bytes.NewReader(body))
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set(c.header, c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("client: post %s: %w", env.Type, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return protocol.Envelope{}, nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("client: read reply: %w", err)
	}

	var reply protocol.Envelope
	decodeErr := json.Unmarshal(data, &reply)
	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return reply, ErrNoExtractor
	case resp.StatusCode != http.StatusOK:
		msg := reply.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return reply, fmt.Errorf("client: %s: status %d: %s", env.Type, resp.StatusCode, msg)
	case decodeErr != nil:
		return reply, fmt.Errorf("client: decode reply: %w", decodeErr)
	}
	return reply, nil
}

func (c *Client) request(ctx context.Context, kind protocol.Kind) (protocol.Envelope, error) {
	env, err := protocol.New(kind, nil)
	if err != nil {
		return protocol.Envelope{}, err
	}
	reply, err := c.Send(ctx, env)
	if err != nil {
		return reply, err
	}
	if reply.ReplyTo != env.ID {
		return reply, fmt.Errorf("client: %s: reply to %q, want %q", kind, reply.ReplyTo, env.ID)
	}
	if reply.Error != "" {
		return reply, fmt.Errorf("client: %s: %s", kind, reply.Error)
	}
	return reply, nil
}
