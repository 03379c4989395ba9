// Package cache keeps fetched query results in memory and tracks which of
// them must be refetched after a local mutation.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nhle/bookingwatch/internal/model"
)

// Resource names a family of cached queries.
type Resource string

const (
	ResourceProviderAvailability Resource = "provider-availability"
	ResourceAvailabilitySearch   Resource = "availability-search"
	ResourceCustomerBookings     Resource = "customer-bookings"
	ResourceProviderBookings     Resource = "provider-bookings"
)

// Key identifies one cached query. An empty Scope addresses the whole
// resource when invalidating.
type Key struct {
	Resource Resource
	Scope    string
}

func (k Key) String() string {
	if k.Scope == "" {
		return string(k.Resource)
	}
	return string(k.Resource) + "/" + k.Scope
}

// ProviderAvailabilityKey returns the key of one provider's slot list.
func ProviderAvailabilityKey(providerID int64) Key {
	return Key{Resource: ResourceProviderAvailability, Scope: fmt.Sprint(providerID)}
}

type entry struct {
	value     any
	stale     bool
	updatedAt time.Time
}

// QueryCache is a thread-safe map of query results with staleness flags.
type QueryCache struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

// New returns an empty cache.
func New() *QueryCache {
	return &QueryCache{entries: make(map[Key]*entry)}
}

// Get returns the cached value for key, stale or not.
func (c *QueryCache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores a fresh value for key.
func (c *QueryCache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{value: value, updatedAt: time.Now()}
}

// Update replaces the value for key with fn(old). It reports false and
// does nothing when key is not cached. Staleness is left as is.
func (c *QueryCache) Update(key Key, fn func(old any) any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	e.value = fn(e.value)
	e.updatedAt = time.Now()
	return true
}

// Invalidate marks entries stale. A key without Scope matches every entry
// of its resource.
func (c *QueryCache) Invalidate(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if k.Resource != key.Resource {
			continue
		}
		if key.Scope != "" && k.Scope != key.Scope {
			continue
		}
		e.stale = true
		n++
	}
	return n
}

// IsStale reports whether key must be refetched. Missing entries are stale.
func (c *QueryCache) IsStale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return !ok || e.stale
}

// Len returns the number of cached entries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrLoad returns the cached value for key, calling load when the entry
// is missing or stale. A failed load leaves the cache unchanged.
func (c *QueryCache) GetOrLoad(ctx context.Context, key Key, load func(context.Context) (any, error)) (any, error) {
	if !c.IsStale(key) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	c.Set(key, v)
	return v, nil
}

// Slots returns the cached slot list for a provider.
func (c *QueryCache) Slots(providerID int64) ([]model.AvailabilitySlot, bool) {
	v, ok := c.Get(ProviderAvailabilityKey(providerID))
	if !ok {
		return nil, false
	}
	slots, ok := v.([]model.AvailabilitySlot)
	return slots, ok
}
