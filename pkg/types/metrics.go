package types

import (
	"math"
	"net/url"
	"strings"
	"time"
)

// Platform identifies which automation dashboard a MetricSet was read from.
type Platform string

const (
	PlatformMake    Platform = "make"
	PlatformN8N     Platform = "n8n"
	PlatformUnknown Platform = ""
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{PlatformMake, PlatformN8N}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	return p == PlatformMake || p == PlatformN8N
}

// DisplayName returns the human-facing product name.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformMake:
		return "Make"
	case PlatformN8N:
		return "n8n"
	default:
		return "unknown"
	}
}

// DetectPlatform maps a dashboard URL to its platform by host name.
// Self-hosted n8n instances commonly run under an "n8n" subdomain or on the
// default port 5678, so both are recognised.
func DetectPlatform(raw string) Platform {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "make.com" || strings.HasSuffix(host, ".make.com"):
		return PlatformMake
	case host == "n8n.io" || strings.HasSuffix(host, ".n8n.io") ||
		strings.HasSuffix(host, ".n8n.cloud") ||
		strings.HasPrefix(host, "n8n.") || u.Port() == "5678":
		return PlatformN8N
	}
	return PlatformUnknown
}

// MetricSet is the result of one extraction attempt for one platform.
type MetricSet struct {
	Platform   Platform  `json:"platform"`
	SourceURL  string    `json:"sourceUrl,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`

	UsageCount   *int `json:"usageCount"`
	UsageLimit   *int `json:"usageLimit"`
	UsagePercent *int `json:"usagePercent"`

	ItemTotal         *int `json:"itemTotal"`
	ItemsActive       *int `json:"itemsActive"`
	ItemsInErrorState *int `json:"itemsInErrorState"`
	// ItemsPaused holds Make's paused scenarios and n8n's inactive workflows.
	ItemsPaused *int `json:"itemsPaused"`
	ErrorRate   *int `json:"errorRate"`

	TeamLabel string `json:"teamLabel,omitempty"`
	PlanLabel string `json:"planLabel,omitempty"`

	HealthScore *int `json:"healthScore"`
}

// Int returns a pointer to v. Used to mark a field as measured.
func Int(v int) *int { return &v }

// Value dereferences p, returning 0 and false when the field is absent.
func Value(p *int) (int, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Derive recomputes usagePercent and errorRate from their operands.
// A derived field whose operands are missing (or whose denominator is zero)
// is reset to absent rather than left stale.
func (m *MetricSet) Derive() {
	m.UsagePercent = nil
	if m.UsageCount != nil && m.UsageLimit != nil && *m.UsageLimit > 0 {
		m.UsagePercent = Int(roundPct(*m.UsageCount, *m.UsageLimit))
	}
	m.ErrorRate = nil
	if m.ItemsInErrorState != nil && m.ItemTotal != nil && *m.ItemTotal > 0 {
		m.ErrorRate = Int(roundPct(*m.ItemsInErrorState, *m.ItemTotal))
	}
}

// HasSignal reports whether the set carries enough data to be useful:
// either the item total or the primary usage count was found.
func (m *MetricSet) HasSignal() bool {
	return m != nil && (m.ItemTotal != nil || m.UsageCount != nil)
}

// Partial reports whether any numeric source field is still absent.
func (m *MetricSet) Partial() bool {
	return m.UsageCount == nil || m.UsageLimit == nil || m.ItemTotal == nil ||
		m.ItemsInErrorState == nil || m.ItemsPaused == nil
}

// Clone returns a deep copy so the receiver can be handed across goroutines.
func (m MetricSet) Clone() MetricSet {
	out := m
	for _, p := range []**int{
		&out.UsageCount, &out.UsageLimit, &out.UsagePercent,
		&out.ItemTotal, &out.ItemsActive, &out.ItemsInErrorState,
		&out.ItemsPaused, &out.ErrorRate, &out.HealthScore,
	} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return out
}

func roundPct(num, den int) int {
	return int(math.Round(100 * float64(num) / float64(den)))
}
