// Package cache holds the latest-snapshot cache, keyed by device id.
package cache

import (
	"context"
	"sync"
	"time"

	"cacao-server/entities"
)

// SnapshotCache is the operator-facing view of a snapshot cache backend.
type SnapshotCache interface {
	Get(ctx context.Context, deviceID string) (*entities.Snapshot, bool, error)
	Generation(ctx context.Context, deviceID string) (int64, error)
	Set(ctx context.Context, deviceID string, generation int64, snapshot entities.Snapshot) error
	Invalidate(ctx context.Context, deviceID string) error
	Flush(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

type Stats struct {
	Backend    string `json:"backend"`
	Entries    int64  `json:"entries"`
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type snapshotEntry struct {
	Snapshot entities.Snapshot
	CachedAt time.Time
}

// MemoryCache keeps snapshots in process with a per-entry TTL. Expired
// entries are dropped lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]snapshotEntry
	gens    map[string]int64
	ttl     time.Duration
	hits    int64
	misses  int64
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]snapshotEntry),
		gens:    make(map[string]int64),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (mc *MemoryCache) Get(_ context.Context, deviceID string) (*entities.Snapshot, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.entries[deviceID]
	if ok && mc.ttl > 0 && mc.now().Sub(entry.CachedAt) >= mc.ttl {
		delete(mc.entries, deviceID)
		ok = false
	}
	if !ok {
		mc.misses++
		return nil, false, nil
	}
	mc.hits++
	snap := entry.Snapshot
	return &snap, true, nil
}

// Generation returns the device's invalidation counter. Read it before
// loading the snapshot that will be passed to Set.
func (mc *MemoryCache) Generation(_ context.Context, deviceID string) (int64, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.gens[deviceID], nil
}

// Set stores the snapshot unless the device was invalidated after generation
// was read.
func (mc *MemoryCache) Set(_ context.Context, deviceID string, generation int64, snapshot entities.Snapshot) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.gens[deviceID] != generation {
		return nil
	}
	mc.entries[deviceID] = snapshotEntry{Snapshot: copySnapshot(snapshot), CachedAt: mc.now()}
	return nil
}

func (mc *MemoryCache) Invalidate(_ context.Context, deviceID string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.entries, deviceID)
	mc.gens[deviceID]++
	return nil
}

// Flush clears every cached snapshot.
func (mc *MemoryCache) Flush(_ context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.entries = make(map[string]snapshotEntry)
	return nil
}

func (mc *MemoryCache) Stats(_ context.Context) (Stats, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return Stats{
		Backend:    "memory",
		Entries:    int64(len(mc.entries)),
		Hits:       mc.hits,
		Misses:     mc.misses,
		TTLSeconds: int64(mc.ttl / time.Second),
	}, nil
}

// copySnapshot detaches the values map so callers cannot mutate the cache.
func copySnapshot(s entities.Snapshot) entities.Snapshot {
	values := make(map[string]float64, len(s.Values))
	for k, v := range s.Values {
		values[k] = v
	}
	return entities.Snapshot{Date: s.Date, Values: values}
}
