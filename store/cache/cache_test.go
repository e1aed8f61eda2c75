package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is an adjustable clock for TTL tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCache(clock *fakeClock, maxItems int) *Cache {
	return New(Config{
		DefaultTTL: time.Hour,
		MaxItems:   maxItems,
		Now:        clock.Now,
	})
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newTestCache(clock, 0)
	defer c.Close()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "a", 1)
	v, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, int64(1), c.Size())
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newTestCache(clock, 0)
	defer c.Close()

	c.Set(ctx, "a", 1)

	clock.Advance(59 * time.Minute)
	_, ok := c.Get(ctx, "a")
	assert.True(t, ok, "entry should be live inside the TTL window")

	clock.Advance(2 * time.Minute)
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok, "entry should be expired past the TTL window")

	// GetStale still serves the expired data.
	v, expired, ok := c.GetStale(ctx, "a")
	require.True(t, ok)
	assert.True(t, expired)
	assert.Equal(t, 1, v)
}

func TestUpdatePreservesExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newTestCache(clock, 0)
	defer c.Close()

	c.Set(ctx, "ids", []int32{1})

	clock.Advance(50 * time.Minute)
	ok := c.Update(ctx, "ids", func(value any) any {
		return append(value.([]int32), 2)
	})
	require.True(t, ok)

	v, found := c.Get(ctx, "ids")
	require.True(t, found)
	assert.Equal(t, []int32{1, 2}, v)

	// The original expiry still applies: 1h after the Set, not the Update.
	clock.Advance(11 * time.Minute)
	_, found = c.Get(ctx, "ids")
	assert.False(t, found)
}

func TestUpdateMissingOrExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newTestCache(clock, 0)
	defer c.Close()

	called := false
	ok := c.Update(ctx, "missing", func(value any) any {
		called = true
		return value
	})
	assert.False(t, ok)
	assert.False(t, called)

	c.Set(ctx, "a", 1)
	clock.Advance(2 * time.Hour)
	ok = c.Update(ctx, "a", func(value any) any { return 2 })
	assert.False(t, ok)
}

func TestCapacityEviction(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}

	evicted := map[string]any{}
	c := New(Config{
		DefaultTTL: time.Hour,
		MaxItems:   2,
		Now:        clock.Now,
		OnEviction: func(key string, value any) { evicted[key] = value },
	})
	defer c.Close()

	c.SetWithTTL(ctx, "short", 1, time.Minute)
	c.SetWithTTL(ctx, "long", 2, time.Hour)
	c.Set(ctx, "third", 3)

	assert.LessOrEqual(t, c.Size(), int64(2))
	assert.Contains(t, evicted, "short", "the entry closest to expiry should be evicted")

	_, ok := c.Get(ctx, "long")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "third")
	assert.True(t, ok)
}

func TestRangeSkipsExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newTestCache(clock, 0)
	defer c.Close()

	c.SetWithTTL(ctx, "live", 1, time.Hour)
	c.SetWithTTL(ctx, "dead", 2, time.Minute)
	clock.Advance(10 * time.Minute)

	seen := map[string]any{}
	c.Range(func(key string, value any) bool {
		seen[key] = value
		return true
	})
	assert.Equal(t, map[string]any{"live": 1}, seen)
}

func TestDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newTestCache(clock, 0)
	defer c.Close()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)

	c.Delete(ctx, "a")
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Size())

	// Deleting a missing key is a no-op.
	c.Delete(ctx, "a")
	assert.Equal(t, int64(1), c.Size())

	c.Clear(ctx)
	assert.Equal(t, int64(0), c.Size())
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(Config{DefaultTTL: time.Hour, CleanupInterval: time.Minute})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
