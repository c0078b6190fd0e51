// Package store is the coordinator's snapshot cache: the most recent
// MetricSet per platform, stamped with the time it was stored.
//
// Entries are never evicted. Get and All return stale entries unchanged;
// IsStale tells readers whether an entry is older than the TTL (5 minutes
// by default) so they can present it accordingly.
//
// Attach enables optional write-through persistence. SQLite keeps one row
// per platform in a `snapshots` table (JSON value, stored_at in unix
// milliseconds) and is warm-loaded on startup. Persistence failures are
// logged and never fail a Put.
package store
