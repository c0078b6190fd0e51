package api

import (
	"github.com/flowpulse/flowpulse/pkg/types"
	"github.com/flowpulse/flowpulse/server/internal/indicator"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Extractors    int    `json:"extractors"`
	PlatformCount int    `json:"platform_count"`
	StaleCount    int    `json:"stale_count"`
}

// PlatformResponse is one platform entry in GET /api/v1/metrics or
// GET /api/v1/metrics/{platform}.
type PlatformResponse struct {
	Platform    types.Platform   `json:"platform"`
	DisplayName string           `json:"display_name"`
	Metrics     types.MetricSet  `json:"metrics"`
	StoredAt    string           `json:"stored_at"` // RFC3339
	AgeSeconds  float64          `json:"age_seconds"`
	Stale       bool             `json:"stale"`
	Partial     bool             `json:"partial"`
	Color       types.Color      `json:"color,omitempty"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// MetricsResponse is the payload for GET /api/v1/metrics.
type MetricsResponse struct {
	Platforms   []PlatformResponse `json:"platforms"`
	GeneratedAt string             `json:"generated_at"` // RFC3339
}

// IndicatorsResponse is the payload for GET /api/v1/indicators.
type IndicatorsResponse struct {
	Badges map[string]indicator.Badge `json:"badges"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
