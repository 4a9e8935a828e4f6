package ingest

import (
	"sync"
	"time"
)

type seenEntry struct {
	key string
	ts  time.Time
}

// SeenCache remembers recently ingested article ids so repeated feed polls
// and replayed queue messages do not turn into duplicate inserts. Entries
// expire after the ttl; when the capacity is exceeded the oldest go first.
type SeenCache struct {
	mu       sync.Mutex
	items    map[string]time.Time
	order    []seenEntry
	capacity int
	ttl      time.Duration
}

func NewSeenCache(capacity int, ttl time.Duration) *SeenCache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SeenCache{
		items:    make(map[string]time.Time, capacity),
		order:    make([]seenEntry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// IsSeen reports whether the key was marked inside the ttl window. It does
// not record the key; use MarkSeen for that.
func (c *SeenCache) IsSeen(key string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	ts, ok := c.items[key]
	return ok && now.Sub(ts) <= c.ttl
}

// MarkSeen records that the key was ingested.
func (c *SeenCache) MarkSeen(key string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = now
	c.order = append(c.order, seenEntry{key: key, ts: now})
	c.compact(now)
}

func (c *SeenCache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		// A re-marked key has a newer timestamp in items; only drop the
		// entry that still matches.
		if ts, ok := c.items[oldest.key]; ok && ts.Equal(oldest.ts) {
			delete(c.items, oldest.key)
		}
	}
}
