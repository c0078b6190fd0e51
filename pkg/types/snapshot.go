package types

import "time"

// SnapshotTTL is how long a cached MetricSet is considered fresh.
const SnapshotTTL = 5 * time.Minute

// Snapshot is a cached MetricSet with the time it was stored.
type Snapshot struct {
	MetricSet MetricSet `json:"metricSet"`
	StoredAt  time.Time `json:"storedAt"`
}

// StaleAt reports whether s is stale at now: now - storedAt >= SnapshotTTL.
func (s Snapshot) StaleAt(now time.Time) bool {
	return now.Sub(s.StoredAt) >= SnapshotTTL
}
