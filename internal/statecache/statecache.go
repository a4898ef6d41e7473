// Package statecache holds a short-lived in-process copy of the
// snapshot store's records.
//
// The cache exists to absorb read bursts, not to be authoritative: it
// expires wholesale after a TTL and any write path that changes a
// record writes through it. Staleness within the TTL is acceptable
// because freshness reconciliation replays the log on top of whatever
// the cache serves.
package statecache

import (
	"context"
	"sync"
	"time"

	"github.com/inkfold/inkfold/internal/snapstore"
)

// DefaultTTL is how long a fetched record set stays valid.
const DefaultTTL = 30 * time.Second

// FetchFunc loads the full record set from the backing store.
type FetchFunc func(ctx context.Context) ([]snapstore.Record, error)

// Cache is a TTL-bounded copy of the snapshot store's records.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	records   []snapstore.Record
	fetchedAt time.Time
	valid     bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the expiry interval.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the clock. Tests use this to step time without
// sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache with the default TTL.
func New(opts ...Option) *Cache {
	c := &Cache{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// All returns the cached record set, refetching through fetch when the
// cache is empty or expired. A fetch error leaves any previous (stale)
// content untouched and is returned to the caller.
func (c *Cache) All(ctx context.Context, fetch FetchFunc) ([]snapstore.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.records, nil
	}

	records, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.records = records
	c.fetchedAt = c.now()
	c.valid = true
	return c.records, nil
}

// Lookup finds a cached record by id without refetching. The second
// result is false when the cache is cold, expired, or has no such id.
func (c *Cache) Lookup(id string) (snapstore.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid || c.now().Sub(c.fetchedAt) >= c.ttl {
		return snapstore.Record{}, false
	}
	for _, rec := range c.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return snapstore.Record{}, false
}

// Put writes a record through to the cached set, replacing any entry
// with the same id. A cold or expired cache is left alone; the next
// All will fetch the authoritative set anyway.
func (c *Cache) Put(rec snapstore.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid || c.now().Sub(c.fetchedAt) >= c.ttl {
		return
	}
	for i := range c.records {
		if c.records[i].ID == rec.ID {
			c.records[i] = rec
			return
		}
	}
	c.records = append(c.records, rec)
}

// Invalidate drops the cached set, forcing the next All to fetch.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.valid = false
}
