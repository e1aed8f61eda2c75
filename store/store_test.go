package store

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/streamscout/streamscout/internal/profile"
)

// fakeClock is a settable time source shared by store and caches.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// seqRand replays a fixed sequence, wrapping around.
type seqRand struct {
	seq []int
	i   int
}

func (r *seqRand) IntN(n int) int {
	if len(r.seq) == 0 {
		return 0
	}
	v := r.seq[r.i%len(r.seq)] % n
	r.i++
	return v
}

// countingDriver serves canned data and counts driver round trips.
type countingDriver struct {
	streamers []*Streamer
	actedIDs  map[int32][]int32
	vectors   map[int32]map[int32]PreferenceAction
	comments  []*Comment
	tagRows   []*TagCategory

	listStreamersCalls int
	listActedCalls     int
	vectorCalls        int
	listCommentsCalls  int
	failListStreamers  bool
}

func (d *countingDriver) GetDB() *sql.DB { return nil }
func (d *countingDriver) Close() error   { return nil }
func (d *countingDriver) IsInitialized(context.Context) (bool, error) {
	return true, nil
}
func (d *countingDriver) ListStreamers(context.Context) ([]*Streamer, error) {
	d.listStreamersCalls++
	if d.failListStreamers {
		return nil, errors.New("database unavailable")
	}
	return d.streamers, nil
}
func (d *countingDriver) ListStreamersByAction(context.Context, *FindStreamersByAction) ([]*Streamer, error) {
	return nil, nil
}
func (d *countingDriver) UpsertPreference(_ context.Context, upsert *UpsertPreference) (*Preference, error) {
	return &Preference{
		AnonymousUserID: upsert.AnonymousUserID,
		StreamerID:      upsert.StreamerID,
		Action:          upsert.Action,
	}, nil
}
func (d *countingDriver) DeletePreference(context.Context, *DeletePreference) error {
	return nil
}
func (d *countingDriver) ListActedStreamerIDs(_ context.Context, userID int32) ([]int32, error) {
	d.listActedCalls++
	return d.actedIDs[userID], nil
}
func (d *countingDriver) ListActiveUserIDs(context.Context, *FindActiveUserIDs) ([]int32, error) {
	return nil, nil
}
func (d *countingDriver) GetUserPreferenceVector(_ context.Context, userID int32) (map[int32]PreferenceAction, error) {
	d.vectorCalls++
	return d.vectors[userID], nil
}
func (d *countingDriver) ListTagCategories(context.Context) ([]*TagCategory, error) {
	return d.tagRows, nil
}
func (d *countingDriver) ListComments(context.Context, *FindComment) ([]*Comment, error) {
	d.listCommentsCalls++
	return d.comments, nil
}
func (d *countingDriver) CreateCommentsBatch(context.Context, []*Comment) error {
	return nil
}
func (d *countingDriver) CreateContactMessagesBatch(context.Context, []*ContactMessage) error {
	return nil
}
func (d *countingDriver) GetAnonymousUser(context.Context, *FindAnonymousUser) (*AnonymousUser, error) {
	return nil, nil
}
func (d *countingDriver) CreateAnonymousUser(_ context.Context, create *AnonymousUser) (*AnonymousUser, error) {
	create.ID = 1
	return create, nil
}

func newTestStore(t *testing.T, driver *countingDriver) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	st := New(driver, &profile.Profile{Mode: "demo"}, WithClock(clock.Now), WithRand(&seqRand{}))
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})
	return st, clock
}

func testStreamers() []*Streamer {
	return []*Streamer{
		{ID: 1, Name: "Haru", Description: "cozy game streams", Tags: []string{"game", "music"}, FollowerCount: 1200, YouTubeChannelID: "UC1"},
		{ID: 2, Name: "Mio", Description: "music and chatting", Tags: []string{"music"}, FollowerCount: 45000, YouTubeChannelID: "UC2"},
		{ID: 3, Name: "Ren", Description: "speedruns", Tags: []string{"game", "art"}, FollowerCount: 800},
		{ID: 4, Name: "Yuki", Description: "digital art", Tags: []string{"art"}, FollowerCount: 15000, YouTubeChannelID: "UC4"},
	}
}

func TestListStreamersCachedWithinTTL(t *testing.T) {
	ctx := context.Background()
	driver := &countingDriver{streamers: testStreamers()}
	st, clock := newTestStore(t, driver)

	for i := 0; i < 3; i++ {
		streamers, err := st.ListStreamers(ctx)
		require.NoError(t, err)
		require.Len(t, streamers, 4)
	}
	require.Equal(t, 1, driver.listStreamersCalls)

	clock.Advance(time.Hour + time.Minute)
	_, err := st.ListStreamers(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, driver.listStreamersCalls)
}

func TestListStreamersFetchErrorPropagates(t *testing.T) {
	ctx := context.Background()
	driver := &countingDriver{streamers: testStreamers(), failListStreamers: true}
	st, _ := newTestStore(t, driver)

	_, err := st.ListStreamers(ctx)
	require.Error(t, err)

	// The failure must not poison the cache: the next call retries.
	driver.failListStreamers = false
	streamers, err := st.ListStreamers(ctx)
	require.NoError(t, err)
	require.Len(t, streamers, 4)
	require.Equal(t, 2, driver.listStreamersCalls)
}

func TestGetStreamerByID(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, &countingDriver{streamers: testStreamers()})

	streamer, err := st.GetStreamerByID(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, streamer)
	require.Equal(t, "Mio", streamer.Name)

	streamer, err = st.GetStreamerByID(ctx, 99)
	require.NoError(t, err)
	require.Nil(t, streamer)
}

func TestPickRandomStreamerExhaustedPool(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, &countingDriver{streamers: testStreamers()})

	streamer, err := st.PickRandomStreamer(ctx, []int32{1, 2, 3, 4})
	require.NoError(t, err)
	require.Nil(t, streamer)
}

func TestPickRandomStreamersFilters(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, &countingDriver{streamers: testStreamers()})

	t.Run("TagOr", func(t *testing.T) {
		streamers, err := st.PickRandomStreamers(ctx, &FindRandomStreamers{
			Count:          10,
			StreamerFilter: StreamerFilter{Tags: []string{"game", "art"}, TagOperator: TagOperatorOr},
		})
		require.NoError(t, err)
		require.Len(t, streamers, 3) // Haru, Ren, Yuki
	})

	t.Run("TagAnd", func(t *testing.T) {
		streamers, err := st.PickRandomStreamers(ctx, &FindRandomStreamers{
			Count:          10,
			StreamerFilter: StreamerFilter{Tags: []string{"game", "art"}, TagOperator: TagOperatorAnd},
		})
		require.NoError(t, err)
		require.Len(t, streamers, 1)
		require.Equal(t, int32(3), streamers[0].ID)
	})

	t.Run("FollowerBoundsInclusive", func(t *testing.T) {
		minFollowers, maxFollowers := int64(1200), int64(15000)
		streamers, err := st.PickRandomStreamers(ctx, &FindRandomStreamers{
			Count:          10,
			StreamerFilter: StreamerFilter{MinFollowers: &minFollowers, MaxFollowers: &maxFollowers},
		})
		require.NoError(t, err)
		require.Len(t, streamers, 2) // Haru at the min, Yuki at the max
	})

	t.Run("QueryMatchesNameOrDescription", func(t *testing.T) {
		streamers, err := st.PickRandomStreamers(ctx, &FindRandomStreamers{
			Count:          10,
			StreamerFilter: StreamerFilter{Query: "MUSIC"},
		})
		require.NoError(t, err)
		require.Len(t, streamers, 2) // matched in description, case-insensitive
	})

	t.Run("Exclusion", func(t *testing.T) {
		streamers, err := st.PickRandomStreamers(ctx, &FindRandomStreamers{
			Count:      10,
			ExcludeIDs: []int32{1, 3},
		})
		require.NoError(t, err)
		require.Len(t, streamers, 2)
	})

	t.Run("LiveAllowlist", func(t *testing.T) {
		streamers, err := st.PickRandomStreamers(ctx, &FindRandomStreamers{
			Count:          10,
			LiveChannelIDs: []string{"UC1", "UC4"},
		})
		require.NoError(t, err)
		require.Len(t, streamers, 2)
	})

	t.Run("LiveAllowlistEmptyMatchesNothing", func(t *testing.T) {
		streamers, err := st.PickRandomStreamers(ctx, &FindRandomStreamers{
			Count:          10,
			LiveChannelIDs: []string{},
		})
		require.NoError(t, err)
		require.Empty(t, streamers)
	})

	t.Run("CountTruncates", func(t *testing.T) {
		streamers, err := st.PickRandomStreamers(ctx, &FindRandomStreamers{Count: 2})
		require.NoError(t, err)
		require.Len(t, streamers, 2)
	})
}

func TestUserActionListMutation(t *testing.T) {
	ctx := context.Background()
	driver := &countingDriver{actedIDs: map[int32][]int32{7: {1, 2}}}
	st, _ := newTestStore(t, driver)

	// Mutating an uncached entry must not create one or hit the driver.
	st.AddUserAction(ctx, 7, 3)
	require.Equal(t, 0, driver.listActedCalls)

	ids, err := st.ListUserActionedStreamerIDs(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2}, ids)
	require.Equal(t, 1, driver.listActedCalls)

	// In-place add, idempotent.
	st.AddUserAction(ctx, 7, 3)
	st.AddUserAction(ctx, 7, 3)
	ids, err = st.ListUserActionedStreamerIDs(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2, 3}, ids)

	// Remove, with absent id a no-op.
	st.RemoveUserAction(ctx, 7, 2)
	st.RemoveUserAction(ctx, 7, 99)
	ids, err = st.ListUserActionedStreamerIDs(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 3}, ids)

	// All served from the single cached entry.
	require.Equal(t, 1, driver.listActedCalls)
}

func TestUserActionMutationDoesNotResetTTL(t *testing.T) {
	ctx := context.Background()
	driver := &countingDriver{actedIDs: map[int32][]int32{7: {1}}}
	st, clock := newTestStore(t, driver)

	_, err := st.ListUserActionedStreamerIDs(ctx, 7)
	require.NoError(t, err)

	clock.Advance(50 * time.Minute)
	st.AddUserAction(ctx, 7, 2)

	// The entry expires on its original schedule despite the mutation.
	clock.Advance(11 * time.Minute)
	_, err = st.ListUserActionedStreamerIDs(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 2, driver.listActedCalls)
}

func TestUpsertPreferenceInvalidatesDerivedCaches(t *testing.T) {
	ctx := context.Background()
	driver := &countingDriver{
		vectors: map[int32]map[int32]PreferenceAction{
			7: {1: PreferenceActionLike},
		},
	}
	st, _ := newTestStore(t, driver)

	preferences, err := st.GetUserPreferences(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, map[int32]float64{1: 1.0}, preferences)
	require.Equal(t, 1, driver.vectorCalls)

	st.SetUserSimilarity(ctx, 7, 9, 0.8)
	st.SetUserSimilarity(ctx, 3, 7, 0.6)
	st.SetUserSimilarity(ctx, 3, 9, 0.4)

	_, err = st.UpsertPreference(ctx, &UpsertPreference{AnonymousUserID: 7, StreamerID: 2, Action: PreferenceActionSoso})
	require.NoError(t, err)

	// The preference vector must be refetched.
	driver.vectors[7][2] = PreferenceActionSoso
	preferences, err = st.GetUserPreferences(ctx, 7)
	require.NoError(t, err)
	require.Len(t, preferences, 2)
	require.Equal(t, 0.5, preferences[2])
	require.Equal(t, 2, driver.vectorCalls)

	// Similarities involving user 7 are gone; the unrelated pair stays.
	_, ok := st.GetUserSimilarity(ctx, 7, 9)
	require.False(t, ok)
	_, ok = st.GetUserSimilarity(ctx, 3, 7)
	require.False(t, ok)
	similarity, ok := st.GetUserSimilarity(ctx, 3, 9)
	require.True(t, ok)
	require.Equal(t, 0.4, similarity)
}

func TestUserSimilarityKeyIsUnordered(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, &countingDriver{})

	st.SetUserSimilarity(ctx, 9, 2, 0.7)
	similarity, ok := st.GetUserSimilarity(ctx, 2, 9)
	require.True(t, ok)
	require.Equal(t, 0.7, similarity)
}

func TestListAllTags(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, &countingDriver{streamers: testStreamers()})

	tags, err := st.ListAllTags(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"art", "game", "music"}, tags)
}

func TestListTagCategories(t *testing.T) {
	ctx := context.Background()
	driver := &countingDriver{tagRows: []*TagCategory{
		{ID: 1, CategoryName: "content", TagName: "music", SortOrder: 1},
		{ID: 2, CategoryName: "content", TagName: "game", SortOrder: 2},
		{ID: 3, CategoryName: "style", TagName: "chill", SortOrder: 1},
	}}
	st, _ := newTestStore(t, driver)

	categories, err := st.ListTagCategories(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string][]string{
		"content": {"music", "game"},
		"style":   {"chill"},
	}, categories)
}

func TestCommentCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	driver := &countingDriver{comments: []*Comment{{ID: 1, UID: "c1", StreamerID: 5, Content: "nice"}}}
	st, _ := newTestStore(t, driver)

	_, err := st.ListCommentsByStreamer(ctx, 5)
	require.NoError(t, err)
	_, err = st.ListCommentsByStreamer(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, 1, driver.listCommentsCalls)

	st.InvalidateComments(ctx, 5)
	_, err = st.ListCommentsByStreamer(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, 2, driver.listCommentsCalls)
}

func TestLiveStatusStaleFallback(t *testing.T) {
	ctx := context.Background()
	st, clock := newTestStore(t, &countingDriver{})

	st.SetLiveStatus(ctx, map[string]*LiveStreamInfo{
		"UC1": {ChannelID: "UC1", IsLive: true},
	})

	clock.Advance(13 * time.Hour)

	// Fresh read misses, stale read still serves.
	_, ok := st.GetLiveStatus(ctx)
	require.False(t, ok)
	statuses, expired, ok := st.GetLiveStatusStale(ctx)
	require.True(t, ok)
	require.True(t, expired)
	require.Len(t, statuses, 1)

	channelIDs, ok := st.LiveChannelIDs(ctx)
	require.True(t, ok)
	require.Equal(t, []string{"UC1"}, channelIDs)
}

func TestStatsSnapshot(t *testing.T) {
	ctx := context.Background()
	driver := &countingDriver{
		streamers: testStreamers(),
		vectors:   map[int32]map[int32]PreferenceAction{7: {1: PreferenceActionLike}},
	}
	st, _ := newTestStore(t, driver)

	_, err := st.ListStreamers(ctx)
	require.NoError(t, err)
	_, err = st.GetUserPreferences(ctx, 7)
	require.NoError(t, err)
	st.SetUserSimilarity(ctx, 1, 2, 0.5)

	stats := st.Stats(ctx)
	require.True(t, stats.Streamers.Cached)
	require.Equal(t, 4, stats.Streamers.Count)
	require.True(t, stats.Streamers.TTL > 0)
	require.Equal(t, int64(1), stats.UserPreferences)
	require.Equal(t, int64(1), stats.UserSimilarity)
	require.False(t, stats.LiveStatus.Cached)
}
