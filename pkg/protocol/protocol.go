package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowpulse/flowpulse/pkg/types"
)

// Kind is the exact wire string identifying a message type.
type Kind string

const (
	MetricsExtracted        Kind = "METRICS_EXTRACTED"
	MetricsExtractionFailed Kind = "METRICS_EXTRACTION_FAILED"
	GetMetrics              Kind = "GET_METRICS"
	AnalyzeTab              Kind = "ANALYZE_TAB"
	ExtractMetrics          Kind = "EXTRACT_METRICS"
	OpenPopup               Kind = "OPEN_POPUP"
)

// ExpectsResponse reports whether a sender of k waits for exactly one reply.
func ExpectsResponse(k Kind) bool {
	switch k {
	case GetMetrics, AnalyzeTab, ExtractMetrics:
		return true
	}
	return false
}

// Known reports whether k is part of the vocabulary.
func Known(k Kind) bool {
	switch k {
	case MetricsExtracted, MetricsExtractionFailed, GetMetrics,
		AnalyzeTab, ExtractMetrics, OpenPopup:
		return true
	}
	return false
}

// Envelope is the JSON frame carried on every transport.
type Envelope struct {
	Type    Kind            `json:"type"`
	ID      string          `json:"id,omitempty"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// FailurePayload accompanies METRICS_EXTRACTION_FAILED, and is the failure
// marker an extractor returns for EXTRACT_METRICS when it found nothing.
type FailurePayload struct {
	Platform  types.Platform `json:"platform"`
	SourceURL string         `json:"sourceUrl"`
	Reason    string         `json:"reason,omitempty"`
}

// MetricsMap is the GET_METRICS response body: the coordinator's snapshot
// map keyed by platform.
type MetricsMap map[types.Platform]types.Snapshot

// AnalyzeResult is the ANALYZE_TAB response body. Exactly one of Metrics
// and Failure is set.
type AnalyzeResult struct {
	Metrics *types.MetricSet `json:"metrics,omitempty"`
	Failure *FailurePayload  `json:"failure,omitempty"`
}

// New builds a request envelope with a fresh ID and a JSON payload.
// A nil payload produces an envelope with no payload field.
func New(kind Kind, payload any) (Envelope, error) {
	env := Envelope{Type: kind, ID: uuid.NewString()}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: encode %s payload: %w", kind, err)
	}
	env.Payload = raw
	return env, nil
}

// Reply builds the response envelope for req.
func Reply(req Envelope, payload any) (Envelope, error) {
	env, err := New(req.Type, payload)
	if err != nil {
		return Envelope{}, err
	}
	env.ReplyTo = req.ID
	return env, nil
}

// ReplyError builds an error response for req.
func ReplyError(req Envelope, err error) Envelope {
	return Envelope{Type: req.Type, ID: uuid.NewString(), ReplyTo: req.ID, Error: err.Error()}
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("protocol: %s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("protocol: decode %s payload: %w", e.Type, err)
	}
	return nil
}
