package reservation

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// SnapshotCache serves occupancy for display. An entry is reloaded from the
// store once it is older than the refresh period, so readers see data at
// most one period stale. Commits never consult it.
type SnapshotCache struct {
	mu      sync.Mutex
	entries map[model.SessionKey]snapshot
	gen     uint64 // bumped by Invalidate; a load started before a bump is not cached
	refresh time.Duration
	clock   clock.Clock
	load    func(context.Context, model.SessionKey) (model.SeatSet, error)
}

type snapshot struct {
	seats  model.SeatSet
	loaded time.Time
}

func NewSnapshotCache(refresh time.Duration, clk clock.Clock, load func(context.Context, model.SessionKey) (model.SeatSet, error)) *SnapshotCache {
	return &SnapshotCache{
		entries: make(map[model.SessionKey]snapshot),
		refresh: refresh,
		clock:   clk,
		load:    load,
	}
}

// Get returns the cached occupancy and the time it was read from the store.
func (c *SnapshotCache) Get(ctx context.Context, key model.SessionKey) (model.SeatSet, time.Time, error) {
	now := c.clock.Now()
	c.mu.Lock()
	e, ok := c.entries[key]
	gen := c.gen
	c.mu.Unlock()
	if ok && now.Sub(e.loaded) < c.refresh {
		return e.seats, e.loaded, nil
	}

	seats, err := c.load(ctx, key)
	if err != nil {
		if ok {
			// Serve the old snapshot rather than fail a display read.
			return e.seats, e.loaded, nil
		}
		return 0, time.Time{}, err
	}
	c.mu.Lock()
	if c.gen == gen {
		c.entries[key] = snapshot{seats: seats, loaded: now}
	}
	c.mu.Unlock()
	return seats, now, nil
}

// Invalidate drops the entry for key so the next Get reloads it.
func (c *SnapshotCache) Invalidate(key model.SessionKey) {
	c.mu.Lock()
	delete(c.entries, key)
	c.gen++
	c.mu.Unlock()
}

// Prune drops entries idle for longer than maxAge.
func (c *SnapshotCache) Prune(maxAge time.Duration) int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.loaded) > maxAge {
			delete(c.entries, k)
			n++
		}
	}
	return n
}
