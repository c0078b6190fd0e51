package extract

import (
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/flowpulse/flowpulse/agent/internal/normalize"
	"github.com/flowpulse/flowpulse/agent/internal/resolve"
	"github.com/flowpulse/flowpulse/agent/internal/status"
	"github.com/flowpulse/flowpulse/pkg/compute"
	"github.com/flowpulse/flowpulse/pkg/types"
)

// maxLabelLen bounds team and plan labels; longer matches are almost
// always a whole container's text rather than a label.
const maxLabelLen = 64

// Profile is the per-platform extraction configuration.
type Profile struct {
	Platform types.Platform

	// UsageRatio locates a "used of limit" block. UsageCount and UsageLimit
	// are consulted only when no ratio is found.
	UsageRatio resolve.Chain
	UsageCount resolve.Chain
	UsageLimit resolve.Chain

	// Rows locates one node per item. Total is a fallback that reads an
	// item count from a heading; Empty detects the "no items" state.
	Rows  resolve.Chain
	Total resolve.Chain
	Empty resolve.Chain

	Errors status.Category
	Paused status.Category
	Active status.Category

	Team resolve.Chain
	Plan resolve.Chain
}

// Extractor fills MetricSets for one platform.
type Extractor struct {
	profile  Profile
	resolver *resolve.Resolver
	counter  *status.Counter
	policy   *bluemonday.Policy
	now      func() time.Time
}

// New returns an Extractor for p.
func New(p Profile) *Extractor {
	r := resolve.New()
	return &Extractor{
		profile:  p,
		resolver: r,
		counter:  status.NewCounter(r, p.Rows),
		policy:   bluemonday.StrictPolicy(),
		now:      time.Now,
	}
}

// For returns the built-in Extractor for platform p.
func For(p types.Platform) (*Extractor, error) {
	switch p {
	case types.PlatformMake:
		return New(MakeProfile()), nil
	case types.PlatformN8N:
		return New(N8NProfile()), nil
	default:
		return nil, fmt.Errorf("extract: unsupported platform %q", p)
	}
}

// Platform returns the platform this extractor reads.
func (e *Extractor) Platform() types.Platform {
	return e.profile.Platform
}

// Extract reads every field it can from doc.
func (e *Extractor) Extract(doc *resolve.Document) (ms types.MetricSet) {
	ms = types.MetricSet{Platform: e.profile.Platform, CapturedAt: e.now().UTC()}
	if doc != nil {
		ms.SourceURL = doc.URL
	}
	defer func() {
		if v := recover(); v != nil {
			slog.Warn("extract: recovered from panic, returning empty metrics",
				"platform", e.profile.Platform, "panic", v)
			ms = types.MetricSet{Platform: ms.Platform, SourceURL: ms.SourceURL, CapturedAt: ms.CapturedAt}
			compute.Finalize(&ms)
		}
	}()

	e.usage(doc, &ms)
	e.items(doc, &ms)
	ms.TeamLabel = e.label(doc, e.profile.Team)
	ms.PlanLabel = e.label(doc, e.profile.Plan)

	compute.Finalize(&ms)
	slog.Debug("extract: attempt complete",
		"platform", ms.Platform,
		"usage_count", ms.UsageCount != nil,
		"item_total", ms.ItemTotal != nil,
		"score", *ms.HealthScore)
	return ms
}

func (e *Extractor) usage(doc *resolve.Document, ms *types.MetricSet) {
	if m, ok := e.resolver.Resolve(doc, e.profile.UsageRatio); ok {
		if r, ok := normalize.ExtractRatio(m.Text); ok {
			ms.UsageCount = types.Int(roundInt(r.Used))
			ms.UsageLimit = types.Int(roundInt(r.Limit))
			slog.Debug("extract: usage ratio", "strategy", m.Strategy)
			return
		}
	}
	if m, ok := e.resolver.Resolve(doc, e.profile.UsageCount); ok {
		if v, ok := normalize.ToInt(m.Text); ok {
			ms.UsageCount = types.Int(v)
		}
	}
	if m, ok := e.resolver.Resolve(doc, e.profile.UsageLimit); ok {
		if v, ok := normalize.ToInt(m.Text); ok {
			ms.UsageLimit = types.Int(v)
		}
	}
}

// items fills the item total and the per-status counts. Counts are only
// reported when the total is known: without visible rows a zero count
// would be a guess, not a measurement.
func (e *Extractor) items(doc *resolve.Document, ms *types.MetricSet) {
	if col, ok := e.resolver.ResolveAll(doc, e.profile.Rows); ok {
		ms.ItemTotal = types.Int(len(col.Nodes))
		slog.Debug("extract: item rows", "strategy", col.Strategy, "rows", len(col.Nodes))
	} else if m, ok := e.resolver.Resolve(doc, e.profile.Total); ok {
		if v, ok := normalize.ToInt(m.Text); ok && v >= 0 {
			ms.ItemTotal = types.Int(v)
		}
	} else if _, ok := e.resolver.Resolve(doc, e.profile.Empty); ok {
		ms.ItemTotal = types.Int(0)
	}
	if ms.ItemTotal == nil {
		return
	}

	ms.ItemsInErrorState = types.Int(e.counter.Count(doc, e.profile.Errors))
	ms.ItemsPaused = types.Int(e.counter.Count(doc, e.profile.Paused))
	ms.ItemsActive = types.Int(e.counter.Count(doc, e.profile.Active))
}

// label resolves a free-text label and reduces it to plain text.
func (e *Extractor) label(doc *resolve.Document, chain resolve.Chain) string {
	m, ok := e.resolver.Resolve(doc, chain)
	if !ok {
		return ""
	}
	s := html.UnescapeString(e.policy.Sanitize(m.Text))
	s = normalize.Clean(s)
	if utf8.RuneCountInString(s) > maxLabelLen {
		return ""
	}
	return strings.TrimSpace(s)
}

func roundInt(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}
