// Package cache holds small in-process caches for hot lookups on the reconcile path.
package cache

import (
	"sync"
	"time"

	"github.com/smallbiznis/claimsync/internal/clock"
)

// Cache is the lookup surface the reconcile engine depends on.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache keeps at most maxEntries values, each with its own expiry.
// When full, expired entries are swept first and then the entry closest to
// expiry is evicted.
type TTLCache[K comparable, V any] struct {
	mu         sync.Mutex
	items      map[K]entry[V]
	maxEntries int
	clock      clock.Clock
}

// NewTTLCache builds a cache bounded to maxEntries. A non-positive bound means unbounded.
func NewTTLCache[K comparable, V any](maxEntries int, clk clock.Clock) *TTLCache[K, V] {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &TTLCache[K, V]{
		items:      make(map[K]entry[V]),
		maxEntries: maxEntries,
		clock:      clk,
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.expired(item, c.clock.Now()) {
		delete(c.items, key)
		return zero, false
	}
	return item.value, true
}

// Set stores value until ttl elapses. A non-positive ttl never expires.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if c == nil {
		return
	}
	now := c.clock.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.evict(now)
	}
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
}

func (c *TTLCache[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len counts stored entries, including ones that expired but were not yet swept.
func (c *TTLCache[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// evict must be called with mu held.
func (c *TTLCache[K, V]) evict(now time.Time) {
	for key, item := range c.items {
		if c.expired(item, now) {
			delete(c.items, key)
		}
	}
	if len(c.items) < c.maxEntries {
		return
	}

	var (
		victim  K
		soonest time.Time
		found   bool
	)
	for key, item := range c.items {
		if item.expiresAt.IsZero() {
			continue
		}
		if !found || item.expiresAt.Before(soonest) {
			victim, soonest, found = key, item.expiresAt, true
		}
	}
	if !found {
		for key := range c.items {
			victim = key
			break
		}
	}
	delete(c.items, victim)
}

func (c *TTLCache[K, V]) expired(item entry[V], now time.Time) bool {
	return !item.expiresAt.IsZero() && !now.Before(item.expiresAt)
}

// Noop never stores anything.
type Noop[K comparable, V any] struct{}

func (Noop[K, V]) Get(K) (V, bool) {
	var zero V
	return zero, false
}

func (Noop[K, V]) Set(K, V, time.Duration) {}

func (Noop[K, V]) Delete(K) {}
