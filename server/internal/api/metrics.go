package api

import (
	"io"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/flowpulse/flowpulse/pkg/types"
	"github.com/flowpulse/flowpulse/server/internal/store"
)

// gauge describes one exposed metric family. value returns false when the
// field is Absent; absent fields are left out rather than reported as 0.
type gauge struct {
	name  string
	help  string
	value func(cache *store.Store, snap types.Snapshot) (float64, bool)
}

func field(get func(ms types.MetricSet) *int) func(*store.Store, types.Snapshot) (float64, bool) {
	return func(_ *store.Store, snap types.Snapshot) (float64, bool) {
		v, ok := types.Value(get(snap.MetricSet))
		return float64(v), ok
	}
}

var gauges = []gauge{
	{
		name:  "flowpulse_health_score",
		help:  "Health score 0-100 of the last cached extraction.",
		value: field(func(ms types.MetricSet) *int { return ms.HealthScore }),
	},
	{
		name:  "flowpulse_usage_percent",
		help:  "Usage as a percentage of the plan limit.",
		value: field(func(ms types.MetricSet) *int { return ms.UsagePercent }),
	},
	{
		name:  "flowpulse_items_total",
		help:  "Number of scenarios or workflows listed.",
		value: field(func(ms types.MetricSet) *int { return ms.ItemTotal }),
	},
	{
		name:  "flowpulse_items_error",
		help:  "Number of scenarios or workflows in an error state.",
		value: field(func(ms types.MetricSet) *int { return ms.ItemsInErrorState }),
	},
	{
		name:  "flowpulse_items_paused",
		help:  "Number of paused scenarios or inactive workflows.",
		value: field(func(ms types.MetricSet) *int { return ms.ItemsPaused }),
	},
	{
		name: "flowpulse_snapshot_age_seconds",
		help: "Seconds since the snapshot was stored.",
		value: func(cache *store.Store, snap types.Snapshot) (float64, bool) {
			return cache.Age(snap).Seconds(), true
		},
	},
	{
		name: "flowpulse_snapshot_stale",
		help: "1 when the snapshot is older than the cache TTL.",
		value: func(cache *store.Store, snap types.Snapshot) (float64, bool) {
			if cache.IsStale(snap) {
				return 1, true
			}
			return 0, true
		},
	},
}

// exposition serves GET /metrics in the Prometheus text format.
func (h *Handler) exposition(w http.ResponseWriter, _ *http.Request) {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	if err := WriteExposition(w, h.rt.Env().Cache, format); err != nil {
		jsonErr(w, http.StatusInternalServerError, "encode metrics")
	}
}

// WriteExposition encodes one gauge family per metric, labelled by
// platform. Families with no measured values are omitted.
func WriteExposition(w io.Writer, cache *store.Store, format expfmt.Format) error {
	all := cache.All()
	platforms := sortedPlatforms(all)
	enc := expfmt.NewEncoder(w, format)

	for _, g := range gauges {
		mf := &dto.MetricFamily{
			Name: proto.String(g.name),
			Help: proto.String(g.help),
			Type: dto.MetricType_GAUGE.Enum(),
		}
		for _, p := range platforms {
			v, ok := g.value(cache, all[p])
			if !ok {
				continue
			}
			mf.Metric = append(mf.Metric, &dto.Metric{
				Label: []*dto.LabelPair{{
					Name:  proto.String("platform"),
					Value: proto.String(string(p)),
				}},
				Gauge: &dto.Gauge{Value: proto.Float64(v)},
			})
		}
		if len(mf.Metric) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
