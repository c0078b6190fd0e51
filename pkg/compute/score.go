package compute

import (
	"math"

	"github.com/flowpulse/flowpulse/pkg/types"
)

// Usage penalty steps, checked from the top.
const (
	usageCritical = 90
	usageHigh     = 75
	usageElevated = 50

	penaltyUsageCritical = 30.0
	penaltyUsageHigh     = 15.0
	penaltyUsageElevated = 5.0
)

// Error penalty: two points per percent of items in error, capped.
const (
	errorWeight = 2.0
	errorCap    = 40.0
)

// maxStalledPenalty bounds every platform's stalled weighting.
const maxStalledPenalty = 20.0

// stalledWeight scales the paused/inactive share of items into a penalty.
type stalledWeight struct {
	factor float64
	cap    float64
}

// n8n lists drafts as inactive workflows, so an inactive n8n workflow says
// less about health than a paused Make scenario.
var stalledWeights = map[types.Platform]stalledWeight{
	types.PlatformMake: {factor: 1.0, cap: 20},
	types.PlatformN8N:  {factor: 0.5, cap: 15},
}

// State constants derived from a score.
const (
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateAtRisk   = "at-risk"
	StateCritical = "critical"
	StateUnknown  = "unknown"
)

// Breakdown is the score together with the penalties that produced it.
type Breakdown struct {
	Score int

	UsagePenalty   float64
	ErrorPenalty   float64
	StalledPenalty float64
}

// Compute scores ms and reports the individual penalties.
func Compute(ms types.MetricSet) Breakdown {
	var b Breakdown

	if pct, ok := types.Value(ms.UsagePercent); ok {
		switch {
		case pct > usageCritical:
			b.UsagePenalty = penaltyUsageCritical
		case pct > usageHigh:
			b.UsagePenalty = penaltyUsageHigh
		case pct > usageElevated:
			b.UsagePenalty = penaltyUsageElevated
		}
	}

	if rate, ok := types.Value(ms.ErrorRate); ok {
		b.ErrorPenalty = math.Min(math.Max(float64(rate), 0)*errorWeight, errorCap)
	}

	total, okTotal := types.Value(ms.ItemTotal)
	paused, okPaused := types.Value(ms.ItemsPaused)
	if okTotal && okPaused && total > 0 {
		w := weightFor(ms.Platform)
		share := 100 * float64(paused) / float64(total)
		b.StalledPenalty = clamp(share*w.factor, 0, math.Min(w.cap, maxStalledPenalty))
	}

	score := 100 - b.UsagePenalty - b.ErrorPenalty - b.StalledPenalty
	b.Score = int(math.Round(math.Max(0, score)))
	return b
}

// Score returns the 0–100 health score of ms.
func Score(ms types.MetricSet) int {
	return Compute(ms).Score
}

// Finalize recomputes the derived fields of ms and stores its score.
func Finalize(ms *types.MetricSet) {
	ms.Derive()
	ms.HealthScore = types.Int(Score(*ms))
}

// StateFromScore maps a score to a named state. A set without any signal
// is unknown rather than healthy.
func StateFromScore(ms types.MetricSet) string {
	if !ms.HasSignal() {
		return StateUnknown
	}
	score := Score(ms)
	switch {
	case score >= types.BandGreen:
		return StateHealthy
	case score >= types.BandYellow:
		return StateDegraded
	case score >= types.BandOrange:
		return StateAtRisk
	default:
		return StateCritical
	}
}

func weightFor(p types.Platform) stalledWeight {
	if w, ok := stalledWeights[p]; ok {
		return w
	}
	return stalledWeights[types.PlatformMake]
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
