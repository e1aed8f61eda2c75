package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the configuration for a Cache.
type Config struct {
	// DefaultTTL is the time-to-live applied by Set.
	DefaultTTL time.Duration
	// CleanupInterval is how often expired entries are purged.
	// Zero disables the background janitor.
	CleanupInterval time.Duration
	// MaxItems caps the number of entries. When the cap is reached, the
	// entry closest to expiry is evicted. Zero means unbounded.
	MaxItems int
	// OnEviction, when set, is called for every entry removed by the
	// janitor or by capacity eviction (not by Delete or Clear).
	OnEviction func(key string, value any)
	// Now is the clock used for expiry checks. Tests inject a fake clock;
	// production leaves it nil and gets time.Now.
	Now func() time.Time
}

// Cache is an in-process TTL cache. All data lives and dies with the
// process; it is never the system of record.
type Cache struct {
	config Config
	data   sync.Map
	size   atomic.Int64

	stopCleanup chan struct{}
	closeOnce   sync.Once
}

type item struct {
	value     any
	expiresAt time.Time
}

// New creates a new cache and starts its janitor goroutine.
func New(config Config) *Cache {
	if config.Now == nil {
		config.Now = time.Now
	}
	c := &Cache{
		config:      config,
		stopCleanup: make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Get returns the value for key if present and not expired.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	v, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}
	it := v.(*item)
	if c.config.Now().After(it.expiresAt) {
		return nil, false
	}
	return it.value, true
}

// GetStale returns the value for key even when expired. The second return
// reports whether the entry is past its TTL. Entries removed by the janitor
// are not recoverable.
func (c *Cache) GetStale(_ context.Context, key string) (any, bool, bool) {
	v, ok := c.data.Load(key)
	if !ok {
		return nil, false, false
	}
	it := v.(*item)
	return it.value, c.config.Now().After(it.expiresAt), true
}

// TTL returns the remaining time-to-live of an unexpired entry.
func (c *Cache) TTL(_ context.Context, key string) (time.Duration, bool) {
	v, ok := c.data.Load(key)
	if !ok {
		return 0, false
	}
	remaining := v.(*item).expiresAt.Sub(c.config.Now())
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	if c.config.MaxItems > 0 && int(c.size.Load()) >= c.config.MaxItems {
		c.evictOne(key)
	}
	_, loaded := c.data.Swap(key, &item{value: value, expiresAt: c.config.Now().Add(ttl)})
	if !loaded {
		c.size.Add(1)
	}
}

// Update replaces the value of an existing, unexpired entry while keeping
// its expiry. It returns false without calling fn when the entry is absent
// or expired, so a caller can mutate cached data in place without extending
// its lifetime.
func (c *Cache) Update(_ context.Context, key string, fn func(value any) any) bool {
	v, ok := c.data.Load(key)
	if !ok {
		return false
	}
	it := v.(*item)
	if c.config.Now().After(it.expiresAt) {
		return false
	}
	c.data.Store(key, &item{value: fn(it.value), expiresAt: it.expiresAt})
	return true
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) {
	if _, loaded := c.data.LoadAndDelete(key); loaded {
		c.size.Add(-1)
	}
}

// Range calls f for every unexpired entry until f returns false.
func (c *Cache) Range(f func(key string, value any) bool) {
	now := c.config.Now()
	c.data.Range(func(k, v any) bool {
		it := v.(*item)
		if now.After(it.expiresAt) {
			return true
		}
		return f(k.(string), it.value)
	})
}

// Size returns the number of entries, including not-yet-purged expired ones.
func (c *Cache) Size() int64 {
	return c.size.Load()
}

// Clear removes all entries.
func (c *Cache) Clear(_ context.Context) {
	c.data.Range(func(k, _ any) bool {
		if _, loaded := c.data.LoadAndDelete(k); loaded {
			c.size.Add(-1)
		}
		return true
	})
}

// Close stops the janitor goroutine. It is safe to call more than once.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
	return nil
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	now := c.config.Now()
	c.data.Range(func(k, v any) bool {
		it := v.(*item)
		if now.After(it.expiresAt) {
			if _, loaded := c.data.LoadAndDelete(k); loaded {
				c.size.Add(-1)
				if c.config.OnEviction != nil {
					c.config.OnEviction(k.(string), it.value)
				}
			}
		}
		return true
	})
}

// evictOne frees one slot for an incoming key: expired entries go first,
// then the entry closest to expiry.
func (c *Cache) evictOne(incoming string) {
	c.removeExpired()
	if c.config.MaxItems <= 0 || int(c.size.Load()) < c.config.MaxItems {
		return
	}

	var victimKey string
	var victimValue any
	var victimExpiry time.Time
	c.data.Range(func(k, v any) bool {
		if k.(string) == incoming {
			return true
		}
		it := v.(*item)
		if victimKey == "" || it.expiresAt.Before(victimExpiry) {
			victimKey = k.(string)
			victimValue = it.value
			victimExpiry = it.expiresAt
		}
		return true
	})
	if victimKey == "" {
		return
	}
	if _, loaded := c.data.LoadAndDelete(victimKey); loaded {
		c.size.Add(-1)
		if c.config.OnEviction != nil {
			c.config.OnEviction(victimKey, victimValue)
		}
	}
}
