package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flowpulse/flowpulse/pkg/types"
)

// persistTimeout bounds a single write-through.
const persistTimeout = 5 * time.Second

// Persister stores snapshots outside the process.
type Persister interface {
	Save(ctx context.Context, snap types.Snapshot) error
	LoadAll(ctx context.Context) ([]types.Snapshot, error)
	Close() error
}

// Store is a thread-safe snapshot cache keyed by platform. Nothing is ever
// evicted; staleness is a property readers check with IsStale.
type Store struct {
	mu      sync.RWMutex
	data    map[types.Platform]types.Snapshot
	ttl     time.Duration
	now     func() time.Time // injectable for deterministic tests
	persist Persister
}

// New creates a Store with the given staleness TTL. A non-positive TTL uses
// types.SnapshotTTL.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = types.SnapshotTTL
	}
	return &Store{
		data: make(map[types.Platform]types.Snapshot),
		ttl:  ttl,
		now:  time.Now,
	}
}

// TTL returns the staleness threshold.
func (s *Store) TTL() time.Duration { return s.ttl }

// Attach enables write-through persistence and warm-loads every snapshot p
// holds. Entries already in memory win over persisted ones.
func (s *Store) Attach(ctx context.Context, p Persister) error {
	snaps, err := p.LoadAll(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist = p
	for _, snap := range snaps {
		if _, ok := s.data[snap.MetricSet.Platform]; ok {
			continue
		}
		s.data[snap.MetricSet.Platform] = snap
	}
	slog.Info("store: warm-loaded snapshots", "count", len(snaps))
	return nil
}

// Put records ms as the latest snapshot for platform, stamped with the
// current time, and returns the stored snapshot. The store keeps its own
// copy of ms.
func (s *Store) Put(platform types.Platform, ms types.MetricSet) types.Snapshot {
	ms = ms.Clone()
	ms.Platform = platform
	snap := types.Snapshot{MetricSet: ms, StoredAt: s.now().UTC()}

	s.mu.Lock()
	s.data[platform] = snap
	p := s.persist
	s.mu.Unlock()

	if p != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := p.Save(ctx, snap); err != nil {
			slog.Warn("store: persist snapshot failed", "platform", platform, "err", err)
		}
	}
	return snap
}

// Get returns the latest snapshot for platform. Stale snapshots are
// returned as-is.
func (s *Store) Get(platform types.Platform) (types.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[platform]
	if !ok {
		return types.Snapshot{}, false
	}
	return cloneSnap(snap), true
}

// All returns a copy of every snapshot, stale ones included.
func (s *Store) All() map[types.Platform]types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[types.Platform]types.Snapshot, len(s.data))
	for k, v := range s.data {
		out[k] = cloneSnap(v)
	}
	return out
}

// IsStale reports whether snap is at least TTL old.
func (s *Store) IsStale(snap types.Snapshot) bool {
	return !s.now().Before(snap.StoredAt.Add(s.ttl))
}

// Age returns how long ago snap was stored.
func (s *Store) Age(snap types.Snapshot) time.Duration {
	return s.now().Sub(snap.StoredAt)
}

// Count returns the number of platforms with a snapshot.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func cloneSnap(snap types.Snapshot) types.Snapshot {
	snap.MetricSet = snap.MetricSet.Clone()
	return snap
}
