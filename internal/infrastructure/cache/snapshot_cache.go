package cache

import (
	"context"
	"sync"
	"time"

	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/clock"
	"github.com/damon-houk/subly-resolution-service/internal/infrastructure/metrics"
	"golang.org/x/sync/singleflight"
)

// CacheEntry represents a cached snapshot and the time it was stored
type CacheEntry[T any] struct {
	Value     T
	Timestamp time.Time
}

// SnapshotCache is a thread-safe single-slot cache. The slot is replaced
// wholesale, so a reader always sees either the old or the new snapshot.
type SnapshotCache[T any] struct {
	name       string
	entry      *CacheEntry[T]
	expiration time.Duration
	clock      clock.Clock
	mutex      sync.RWMutex
	refresh    singleflight.Group
}

// NewSnapshotCache creates a new snapshot cache
func NewSnapshotCache[T any](name string, expiration time.Duration, clk clock.Clock) *SnapshotCache[T] {
	if clk == nil {
		clk = clock.Real{}
	}

	return &SnapshotCache[T]{
		name:       name,
		expiration: expiration,
		clock:      clk,
	}
}

// Name returns the cache name used in metrics
func (c *SnapshotCache[T]) Name() string {
	return c.name
}

// Get returns the stored entry regardless of its age
func (c *SnapshotCache[T]) Get() (CacheEntry[T], bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.entry == nil {
		return CacheEntry[T]{}, false
	}
	return *c.entry, true
}

// Fresh returns the stored value if it exists and has not expired
func (c *SnapshotCache[T]) Fresh() (T, bool) {
	entry, ok := c.Get()
	if !ok || c.Expired(entry) {
		metrics.ObserveCache(c.name, metrics.OutcomeMiss)
		var zero T
		return zero, false
	}

	metrics.ObserveCache(c.name, metrics.OutcomeHit)
	return entry.Value, true
}

// Expired reports whether entry is at least as old as the expiration
func (c *SnapshotCache[T]) Expired(entry CacheEntry[T]) bool {
	c.mutex.RLock()
	expiration := c.expiration
	c.mutex.RUnlock()

	return c.clock.Now().Sub(entry.Timestamp) >= expiration
}

// Put replaces the stored snapshot and stamps it with the current time
func (c *SnapshotCache[T]) Put(value T) CacheEntry[T] {
	entry := &CacheEntry[T]{
		Value:     value,
		Timestamp: c.clock.Now(),
	}

	c.mutex.Lock()
	c.entry = entry
	c.mutex.Unlock()

	return *entry
}

// Refresh runs load unless a load for this cache is already in flight, in
// which case it waits for and shares that result. load runs on a context
// that is not cancelled with the caller's.
func (c *SnapshotCache[T]) Refresh(ctx context.Context, load func(ctx context.Context) (T, error)) (T, error) {
	detached := context.WithoutCancel(ctx)

	v, err, _ := c.refresh.Do(c.name, func() (interface{}, error) {
		return load(detached)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Clear drops the stored snapshot
func (c *SnapshotCache[T]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entry = nil
}

// SetExpiration sets the cache expiration duration
func (c *SnapshotCache[T]) SetExpiration(duration time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.expiration = duration
}
