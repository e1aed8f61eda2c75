package store

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/streamscout/streamscout/internal/profile"
	"github.com/streamscout/streamscout/store/cache"
)

// Cache keys for singleton entries.
const (
	streamersCacheKey     = "streamers"
	tagCategoriesCacheKey = "tag_categories"
	liveStatusCacheKey    = "live_status"
)

// RandSource yields random ints in [0, n). Production uses the shared
// math/rand/v2 source; tests inject a seeded one.
type RandSource interface {
	IntN(n int) int
}

type systemRand struct{}

func (systemRand) IntN(n int) int { return rand.IntN(n) }

// Store provides cached database access to all raw objects.
//
// All caches are process-scoped and rebuilt from empty on start; losing
// them loses nothing but performance. The backing driver stays the source
// of truth.
type Store struct {
	profile *profile.Profile
	driver  Driver

	now  func() time.Time
	rand RandSource

	// Caches
	streamerCache       *cache.Cache // full streamer table, singleton entry
	userActionCache     *cache.Cache // per-user acted streamer id lists
	userCache           *cache.Cache // anonymous users by anonymous id
	userPreferenceCache *cache.Cache // per-user streamer id -> score vectors
	similarityCache     *cache.Cache // pairwise user similarity, unordered key
	activeUserCache     *cache.Cache // active user id lists by min-action count
	tagCategoryCache    *cache.Cache // tag categories, singleton entry
	commentCache        *cache.Cache // per-streamer comment lists, short TTL
	liveStatusCache     *cache.Cache // live status map, singleton entry, long TTL
}

// Option customizes a Store. Used by tests to pin the clock and randomness.
type Option func(*Store)

// WithClock overrides the time source used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRand overrides the randomness source used for sampling and shuffling.
func WithRand(r RandSource) Option {
	return func(s *Store) { s.rand = r }
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile, options ...Option) *Store {
	s := &Store{
		driver:  driver,
		profile: profile,
		now:     time.Now,
		rand:    systemRand{},
	}
	for _, option := range options {
		option(s)
	}

	entityTTL := profile.EntityCacheTTL
	if entityTTL <= 0 {
		entityTTL = time.Hour
	}
	commentTTL := profile.CommentCacheTTL
	if commentTTL <= 0 {
		commentTTL = 5 * time.Minute
	}
	liveStatusTTL := profile.LiveStatusCacheTTL
	if liveStatusTTL <= 0 {
		liveStatusTTL = 12 * time.Hour
	}

	cacheConfig := cache.Config{
		DefaultTTL:      entityTTL,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
		Now:             s.now,
	}

	s.streamerCache = cache.New(cache.Config{DefaultTTL: entityTTL, Now: s.now})
	s.userActionCache = cache.New(cacheConfig)
	s.userCache = cache.New(cacheConfig)
	s.userPreferenceCache = cache.New(cacheConfig)
	s.similarityCache = cache.New(cache.Config{
		DefaultTTL:      entityTTL,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        10000,
		Now:             s.now,
	})
	s.activeUserCache = cache.New(cacheConfig)
	s.tagCategoryCache = cache.New(cache.Config{DefaultTTL: entityTTL, Now: s.now})
	s.commentCache = cache.New(cache.Config{
		DefaultTTL:      commentTTL,
		CleanupInterval: time.Minute,
		MaxItems:        1000,
		Now:             s.now,
	})
	// No janitor on the live status cache: expired data is deliberately kept
	// around as a stale fallback for provider outages.
	s.liveStatusCache = cache.New(cache.Config{DefaultTTL: liveStatusTTL, Now: s.now})

	return s
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	// Stop all cache cleanup goroutines
	s.streamerCache.Close()
	s.userActionCache.Close()
	s.userCache.Close()
	s.userPreferenceCache.Close()
	s.similarityCache.Close()
	s.activeUserCache.Close()
	s.tagCategoryCache.Close()
	s.commentCache.Close()
	s.liveStatusCache.Close()

	return s.driver.Close()
}

// SingletonStats describes one singleton cache entry.
type SingletonStats struct {
	Cached bool          `json:"cached"`
	Count  int           `json:"count"`
	TTL    time.Duration `json:"ttl"`
}

// CacheStats is a read-only snapshot of cache population, for operational
// visibility only.
type CacheStats struct {
	Streamers       SingletonStats `json:"streamers"`
	UserActions     int64          `json:"userActions"`
	Users           int64          `json:"users"`
	UserPreferences int64          `json:"userPreferences"`
	UserSimilarity  int64          `json:"userSimilarity"`
	ActiveUserIDs   int64          `json:"activeUserIds"`
	TagCategories   SingletonStats `json:"tagCategories"`
	Comments        int64          `json:"comments"`
	LiveStatus      SingletonStats `json:"liveStatus"`
}

// Stats returns a snapshot of cache population counts and remaining TTLs.
func (s *Store) Stats(ctx context.Context) *CacheStats {
	stats := &CacheStats{
		UserActions:     s.userActionCache.Size(),
		Users:           s.userCache.Size(),
		UserPreferences: s.userPreferenceCache.Size(),
		UserSimilarity:  s.similarityCache.Size(),
		ActiveUserIDs:   s.activeUserCache.Size(),
		Comments:        s.commentCache.Size(),
	}

	if v, ok := s.streamerCache.Get(ctx, streamersCacheKey); ok {
		ttl, _ := s.streamerCache.TTL(ctx, streamersCacheKey)
		stats.Streamers = SingletonStats{Cached: true, Count: len(v.([]*Streamer)), TTL: ttl}
	}
	if v, ok := s.tagCategoryCache.Get(ctx, tagCategoriesCacheKey); ok {
		ttl, _ := s.tagCategoryCache.TTL(ctx, tagCategoriesCacheKey)
		stats.TagCategories = SingletonStats{Cached: true, Count: len(v.(map[string][]string)), TTL: ttl}
	}
	if v, ok := s.liveStatusCache.Get(ctx, liveStatusCacheKey); ok {
		ttl, _ := s.liveStatusCache.TTL(ctx, liveStatusCacheKey)
		stats.LiveStatus = SingletonStats{Cached: true, Count: len(v.(map[string]*LiveStreamInfo)), TTL: ttl}
	}

	return stats
}
