package store

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
)

// Streamer is the object representing a streamer/channel record. The store
// holds a read-only copy of the full table with a TTL; rows are owned by
// the backing database.
type Streamer struct {
	ID               int32
	Name             string
	Platform         string
	AvatarURL        string
	Description      string
	Tags             []string
	FollowerCount    int64
	ChannelURL       string
	YouTubeChannelID string
	TwitchUserID     string
	VideoID          string
	CreatedTs        int64
}

// TagOperator selects the tag filter semantics.
type TagOperator string

const (
	// TagOperatorOr keeps streamers carrying at least one requested tag.
	TagOperatorOr TagOperator = "OR"
	// TagOperatorAnd keeps streamers carrying every requested tag.
	TagOperatorAnd TagOperator = "AND"
)

// StreamerFilter holds the filters shared between random sampling and the
// collaborative candidate list. Nil bounds mean unbounded; both follower
// bounds are inclusive.
type StreamerFilter struct {
	Query        string
	MinFollowers *int64
	MaxFollowers *int64
	Tags         []string
	TagOperator  TagOperator
}

// FindRandomStreamers is the find condition for random sampling.
type FindRandomStreamers struct {
	Count      int
	ExcludeIDs []int32

	// LiveChannelIDs, when non-nil, restricts results to streamers whose
	// YouTube channel id is in the list. An empty non-nil list matches
	// nothing.
	LiveChannelIDs []string

	StreamerFilter
}

// FindStreamersByAction is the find condition for listing a user's
// streamers by recorded action, most recent action first.
type FindStreamersByAction struct {
	UserID int32
	Action *PreferenceAction
}

// ListStreamers returns the full streamer table, served from cache inside
// the TTL window. A miss fetches the whole table and replaces the cache;
// there is no partial refresh. Fetch errors propagate and leave the cache
// untouched.
func (s *Store) ListStreamers(ctx context.Context) ([]*Streamer, error) {
	if v, ok := s.streamerCache.Get(ctx, streamersCacheKey); ok {
		return v.([]*Streamer), nil
	}

	streamers, err := s.driver.ListStreamers(ctx)
	if err != nil {
		return nil, err
	}
	s.streamerCache.Set(ctx, streamersCacheKey, streamers)
	slog.Debug("cached streamers", "count", len(streamers))
	return streamers, nil
}

// GetStreamerByID returns the cached streamer with the given id, or nil
// when absent.
func (s *Store) GetStreamerByID(ctx context.Context, id int32) (*Streamer, error) {
	streamers, err := s.ListStreamers(ctx)
	if err != nil {
		return nil, err
	}
	for _, streamer := range streamers {
		if streamer.ID == id {
			return streamer, nil
		}
	}
	return nil, nil
}

// PickRandomStreamer returns one streamer uniformly at random, excluding
// the given ids. Returns nil when no candidate remains.
func (s *Store) PickRandomStreamer(ctx context.Context, excludeIDs []int32) (*Streamer, error) {
	streamers, err := s.ListStreamers(ctx)
	if err != nil {
		return nil, err
	}
	available := excludeStreamers(streamers, excludeIDs)
	if len(available) == 0 {
		return nil, nil
	}
	return available[s.rand.IntN(len(available))], nil
}

// PickRandomStreamers applies, in order: exclusion, live-only allowlist,
// free-text, follower range, and tag filters, then shuffles the survivors
// and returns the first Count.
func (s *Store) PickRandomStreamers(ctx context.Context, find *FindRandomStreamers) ([]*Streamer, error) {
	streamers, err := s.ListStreamers(ctx)
	if err != nil {
		return nil, err
	}

	available := excludeStreamers(streamers, find.ExcludeIDs)

	if find.LiveChannelIDs != nil {
		live := make([]*Streamer, 0, len(available))
		for _, streamer := range available {
			if streamer.YouTubeChannelID != "" && slices.Contains(find.LiveChannelIDs, streamer.YouTubeChannelID) {
				live = append(live, streamer)
			}
		}
		available = live
	}

	available = ApplyStreamerFilter(available, &find.StreamerFilter)

	shuffled := make([]*Streamer, len(available))
	copy(shuffled, available)
	s.shuffleStreamers(shuffled)

	if find.Count < len(shuffled) {
		shuffled = shuffled[:find.Count]
	}
	return shuffled, nil
}

// ListStreamersByAction returns the streamers a user has reacted to,
// most recent action first. This needs a join, so it always goes to the
// database.
func (s *Store) ListStreamersByAction(ctx context.Context, find *FindStreamersByAction) ([]*Streamer, error) {
	return s.driver.ListStreamersByAction(ctx, find)
}

// ListAllTags returns the sorted, de-duplicated union of all cached
// streamers' tags. Purely derived, never separately cached.
func (s *Store) ListAllTags(ctx context.Context) ([]string, error) {
	streamers, err := s.ListStreamers(ctx)
	if err != nil {
		return nil, err
	}

	tagSet := map[string]struct{}{}
	for _, streamer := range streamers {
		for _, tag := range streamer.Tags {
			tagSet[tag] = struct{}{}
		}
	}

	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// InvalidateStreamers drops the streamer cache. Called when streamer rows
// are updated out of band (tag edits and the like).
func (s *Store) InvalidateStreamers(ctx context.Context) {
	slog.Debug("invalidating streamers cache")
	s.streamerCache.Delete(ctx, streamersCacheKey)
}

// ApplyStreamerFilter applies the free-text, follower range, and tag
// filters in that order. Both the random sampler and the recommendation
// engine run candidates through this exact sequence.
func ApplyStreamerFilter(streamers []*Streamer, filter *StreamerFilter) []*Streamer {
	available := streamers

	if query := strings.TrimSpace(filter.Query); query != "" {
		term := strings.ToLower(query)
		matched := make([]*Streamer, 0, len(available))
		for _, streamer := range available {
			if strings.Contains(strings.ToLower(streamer.Name), term) ||
				strings.Contains(strings.ToLower(streamer.Description), term) {
				matched = append(matched, streamer)
			}
		}
		available = matched
	}

	if filter.MinFollowers != nil && *filter.MinFollowers > 0 {
		matched := make([]*Streamer, 0, len(available))
		for _, streamer := range available {
			if streamer.FollowerCount >= *filter.MinFollowers {
				matched = append(matched, streamer)
			}
		}
		available = matched
	}
	if filter.MaxFollowers != nil {
		matched := make([]*Streamer, 0, len(available))
		for _, streamer := range available {
			if streamer.FollowerCount <= *filter.MaxFollowers {
				matched = append(matched, streamer)
			}
		}
		available = matched
	}

	if len(filter.Tags) > 0 {
		matched := make([]*Streamer, 0, len(available))
		for _, streamer := range available {
			if matchTags(streamer.Tags, filter.Tags, filter.TagOperator) {
				matched = append(matched, streamer)
			}
		}
		available = matched
	}

	return available
}

func matchTags(streamerTags, filterTags []string, operator TagOperator) bool {
	if operator == TagOperatorAnd {
		for _, tag := range filterTags {
			if !slices.Contains(streamerTags, tag) {
				return false
			}
		}
		return true
	}
	for _, tag := range streamerTags {
		if slices.Contains(filterTags, tag) {
			return true
		}
	}
	return false
}

func excludeStreamers(streamers []*Streamer, excludeIDs []int32) []*Streamer {
	if len(excludeIDs) == 0 {
		return streamers
	}
	available := make([]*Streamer, 0, len(streamers))
	for _, streamer := range streamers {
		if !slices.Contains(excludeIDs, streamer.ID) {
			available = append(available, streamer)
		}
	}
	return available
}

// shuffleStreamers is an in-place Fisher-Yates shuffle.
func (s *Store) shuffleStreamers(streamers []*Streamer) {
	for i := len(streamers) - 1; i > 0; i-- {
		j := s.rand.IntN(i + 1)
		streamers[i], streamers[j] = streamers[j], streamers[i]
	}
}
