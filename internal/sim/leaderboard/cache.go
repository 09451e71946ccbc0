package leaderboard

import (
	"cmp"
	"time"

	"github.com/google/uuid"

	"arenaworks.dev/internal/sim/arena"
	"arenaworks.dev/internal/sim/records"
)

// TTL is how long a combined board stays fresh.
const TTL = 30 * time.Second

type entry[V cmp.Ordered] struct {
	mode      arena.GameMode
	records   []records.Record[V]
	createdAt time.Time
}

// Cache memoizes combined boards of one record kind per (group, mode).
// Expired entries are evicted on read.
type Cache[V cmp.Ordered] struct {
	ttl     time.Duration
	now     func() time.Time
	byGroup map[uuid.UUID][]entry[V]
}

func NewCache[V cmp.Ordered](ttl time.Duration, now func() time.Time) *Cache[V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{ttl: ttl, now: now, byGroup: map[uuid.UUID][]entry[V]{}}
}

func (c *Cache[V]) GetOrCompute(groupID uuid.UUID, mode arena.GameMode, compute func() []records.Record[V]) []records.Record[V] {
	now := c.now()
	fresh := c.byGroup[groupID][:0]
	for _, e := range c.byGroup[groupID] {
		if now.Sub(e.createdAt) <= c.ttl {
			fresh = append(fresh, e)
		}
	}
	c.byGroup[groupID] = fresh
	for _, e := range fresh {
		if e.mode == mode {
			return e.records
		}
	}
	recs := compute()
	c.byGroup[groupID] = append(c.byGroup[groupID], entry[V]{mode: mode, records: recs, createdAt: now})
	return recs
}

// Invalidate drops every entry for the group.
func (c *Cache[V]) Invalidate(groupID uuid.UUID) { delete(c.byGroup, groupID) }

// Len counts cached entries, expired ones included.
func (c *Cache[V]) Len() int {
	n := 0
	for _, es := range c.byGroup {
		n += len(es)
	}
	return n
}
