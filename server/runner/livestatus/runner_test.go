package livestatus

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/streamscout/streamscout/internal/profile"
	"github.com/streamscout/streamscout/store"
)

type fakeProvider struct {
	statuses map[string]*store.LiveStreamInfo
	err      error
	calls    int
}

func (p *fakeProvider) FetchLiveStatus(context.Context) (map[string]*store.LiveStreamInfo, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.statuses, nil
}

type nopDriver struct{}

func (nopDriver) GetDB() *sql.DB                                   { return nil }
func (nopDriver) Close() error                                     { return nil }
func (nopDriver) IsInitialized(context.Context) (bool, error)      { return true, nil }
func (nopDriver) ListStreamers(context.Context) ([]*store.Streamer, error) {
	return nil, nil
}
func (nopDriver) ListStreamersByAction(context.Context, *store.FindStreamersByAction) ([]*store.Streamer, error) {
	return nil, nil
}
func (nopDriver) UpsertPreference(context.Context, *store.UpsertPreference) (*store.Preference, error) {
	return nil, nil
}
func (nopDriver) DeletePreference(context.Context, *store.DeletePreference) error { return nil }
func (nopDriver) ListActedStreamerIDs(context.Context, int32) ([]int32, error)    { return nil, nil }
func (nopDriver) ListActiveUserIDs(context.Context, *store.FindActiveUserIDs) ([]int32, error) {
	return nil, nil
}
func (nopDriver) GetUserPreferenceVector(context.Context, int32) (map[int32]store.PreferenceAction, error) {
	return nil, nil
}
func (nopDriver) ListTagCategories(context.Context) ([]*store.TagCategory, error) { return nil, nil }
func (nopDriver) ListComments(context.Context, *store.FindComment) ([]*store.Comment, error) {
	return nil, nil
}
func (nopDriver) CreateCommentsBatch(context.Context, []*store.Comment) error { return nil }
func (nopDriver) CreateContactMessagesBatch(context.Context, []*store.ContactMessage) error {
	return nil
}
func (nopDriver) GetAnonymousUser(context.Context, *store.FindAnonymousUser) (*store.AnonymousUser, error) {
	return nil, nil
}
func (nopDriver) CreateAnonymousUser(context.Context, *store.AnonymousUser) (*store.AnonymousUser, error) {
	return nil, nil
}

func TestRunOnceCachesStatuses(t *testing.T) {
	ctx := context.Background()
	st := store.New(nopDriver{}, &profile.Profile{Mode: "demo"})
	provider := &fakeProvider{
		statuses: map[string]*store.LiveStreamInfo{
			"UC1": {ChannelID: "UC1", IsLive: true},
			"UC2": {ChannelID: "UC2", IsLive: false},
		},
	}

	NewRunner(st, provider).RunOnce(ctx)

	statuses, ok := st.GetLiveStatus(ctx)
	require.True(t, ok)
	require.Len(t, statuses, 2)

	channelIDs, ok := st.LiveChannelIDs(ctx)
	require.True(t, ok)
	require.Equal(t, []string{"UC1"}, channelIDs)
}

func TestProviderFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	st := store.New(nopDriver{}, &profile.Profile{Mode: "demo"})
	provider := &fakeProvider{
		statuses: map[string]*store.LiveStreamInfo{"UC1": {ChannelID: "UC1", IsLive: true}},
	}
	runner := NewRunner(st, provider)

	runner.RunOnce(ctx)
	provider.err = errors.New("quota exceeded")
	runner.RunOnce(ctx)

	// The earlier result must survive the failed poll.
	statuses, ok := st.GetLiveStatus(ctx)
	require.True(t, ok)
	require.Len(t, statuses, 1)
}

func TestRateLimitSkipsExcessPolls(t *testing.T) {
	ctx := context.Background()
	st := store.New(nopDriver{}, &profile.Profile{Mode: "demo"})
	provider := &fakeProvider{statuses: map[string]*store.LiveStreamInfo{}}
	runner := NewRunner(st, provider)

	// The limiter allows a burst of two; the rest of the triggers must
	// not reach the provider.
	for i := 0; i < 5; i++ {
		runner.RunOnce(ctx)
	}
	require.Equal(t, 2, provider.calls)
}
