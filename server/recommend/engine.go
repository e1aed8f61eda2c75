package recommend

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/streamscout/streamscout/store"
)

const (
	// DefaultLimit is the recommendation page size when the caller does
	// not ask for one.
	DefaultLimit = 12
	// DefaultRandomRatio is the share of the page reserved for random
	// diversity injection.
	DefaultRandomRatio = 0.3
)

// Source records where a recommended streamer came from.
type Source string

const (
	SourceCollaborative Source = "collaborative"
	SourceRandom        Source = "random"
)

// RecommendedStreamer is one result with its provenance. Score is the
// normalized collaborative score, zero for random picks.
type RecommendedStreamer struct {
	*store.Streamer
	Source Source
	Score  float64
}

// DebugInfo carries engine statistics for tuning. It never changes what
// gets recommended.
type DebugInfo struct {
	TotalActiveUsers   int
	CurrentUserActions int
	SimilarUsersFound  int
	AvgSimilarity      float64
	CollaborativeCount int
	RandomCount        int
}

// Options are the per-request recommendation parameters. Zero values
// select the defaults; nil follower bounds mean unbounded.
type Options struct {
	ExcludeIDs   []int32
	Tags         []string
	TagOperator  store.TagOperator
	Query        string
	MinFollowers *int64
	MaxFollowers *int64
	LiveOnly     bool
	Limit        int
	RandomRatio  float64
}

// Engine produces ranked, filtered, diversified recommendation lists on
// top of the store's caches.
type Engine struct {
	store *store.Store
	rand  store.RandSource
}

type systemRand struct{}

func (systemRand) IntN(n int) int {
	return rand.IntN(n)
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand swaps the randomness source, for deterministic tests.
func WithRand(r store.RandSource) Option {
	return func(e *Engine) {
		e.rand = r
	}
}

func NewEngine(st *store.Store, options ...Option) *Engine {
	e := &Engine{
		store: st,
		rand:  systemRand{},
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// GetRecommendations returns a recommendation page for the user. It is
// the debug path with the annotations stripped, so the two can never
// drift apart.
func (e *Engine) GetRecommendations(ctx context.Context, userID int32, opts *Options) ([]*store.Streamer, error) {
	recommended, _, err := e.GetRecommendationsWithDebug(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	streamers := make([]*store.Streamer, 0, len(recommended))
	for _, item := range recommended {
		streamers = append(streamers, item.Streamer)
	}
	return streamers, nil
}

// GetRecommendationsWithDebug returns the recommendation page with
// per-item provenance and engine statistics.
//
// Collaborative candidates are scored as similarity-weighted sums of the
// neighbors' positive preferences, normalized by the total neighbor
// similarity. Dislikes never propagate. The page is then topped up with
// random picks and shuffled so ordering does not betray provenance. A
// cold-start user falls through to the purely random path.
func (e *Engine) GetRecommendationsWithDebug(ctx context.Context, userID int32, opts *Options) ([]*RecommendedStreamer, *DebugInfo, error) {
	if opts == nil {
		opts = &Options{}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	randomRatio := opts.RandomRatio
	if randomRatio <= 0 {
		randomRatio = DefaultRandomRatio
	}
	if randomRatio > 1 {
		randomRatio = 1
	}

	filter := &store.StreamerFilter{
		Query:        opts.Query,
		MinFollowers: opts.MinFollowers,
		MaxFollowers: opts.MaxFollowers,
		Tags:         opts.Tags,
		TagOperator:  opts.TagOperator,
	}

	// nil means the live filter is off; an empty non-nil list means live
	// data exists but nobody is live. With no live data cached at all the
	// filter stays off rather than blanking the page.
	var liveChannelIDs []string
	if opts.LiveOnly {
		if channelIDs, ok := e.store.LiveChannelIDs(ctx); ok {
			liveChannelIDs = channelIDs
		}
	}

	preferences, err := e.store.GetUserPreferences(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	activeUserIDs, err := e.store.ListActiveUserIDs(ctx, minPreferencesForSimilarity)
	if err != nil {
		return nil, nil, err
	}

	debug := &DebugInfo{
		TotalActiveUsers:   len(activeUserIDs),
		CurrentUserActions: len(preferences),
	}

	var neighbors []SimilarUser
	if len(preferences) >= minPreferencesForSimilarity {
		neighbors, err = e.rankSimilarUsers(ctx, userID, preferences, activeUserIDs, defaultTopN, defaultMinSimilarity)
		if err != nil {
			return nil, nil, err
		}
	}
	debug.SimilarUsersFound = len(neighbors)
	debug.AvgSimilarity = averageSimilarity(neighbors)

	if len(neighbors) == 0 {
		// Cold start: the whole page comes from the random sampler.
		streamers, err := e.store.PickRandomStreamers(ctx, &store.FindRandomStreamers{
			Count:          limit,
			ExcludeIDs:     opts.ExcludeIDs,
			LiveChannelIDs: liveChannelIDs,
			StreamerFilter: *filter,
		})
		if err != nil {
			return nil, nil, err
		}
		recommended := annotate(nil, streamers)
		debug.RandomCount = len(recommended)
		return recommended, debug, nil
	}

	collaborative, err := e.collaborativeCandidates(ctx, neighbors, opts.ExcludeIDs, liveChannelIDs, filter)
	if err != nil {
		return nil, nil, err
	}

	collaborativeCount := int(math.Floor(float64(limit) * (1 - randomRatio)))
	if len(collaborative) > collaborativeCount {
		collaborative = collaborative[:collaborativeCount]
	}

	// The random share is a fixed quota, not a top-up: when fewer
	// collaborative candidates survive filtering the page comes back
	// short instead of over-diluting it with randoms.
	randomCount := limit - collaborativeCount
	excludeIDs := make([]int32, 0, len(opts.ExcludeIDs)+len(collaborative))
	excludeIDs = append(excludeIDs, opts.ExcludeIDs...)
	for _, item := range collaborative {
		excludeIDs = append(excludeIDs, item.Streamer.ID)
	}
	randoms, err := e.store.PickRandomStreamers(ctx, &store.FindRandomStreamers{
		Count:          randomCount,
		ExcludeIDs:     excludeIDs,
		LiveChannelIDs: liveChannelIDs,
		StreamerFilter: *filter,
	})
	if err != nil {
		return nil, nil, err
	}

	recommended := annotate(collaborative, randoms)
	e.shuffle(recommended)
	if len(recommended) > limit {
		recommended = recommended[:limit]
	}

	for _, item := range recommended {
		if item.Source == SourceCollaborative {
			debug.CollaborativeCount++
		} else {
			debug.RandomCount++
		}
	}
	return recommended, debug, nil
}

// collaborativeCandidates scores, resolves, and filters the neighbors'
// preferences, best score first.
func (e *Engine) collaborativeCandidates(ctx context.Context, neighbors []SimilarUser, excludeIDs []int32, liveChannelIDs []string, filter *store.StreamerFilter) ([]*RecommendedStreamer, error) {
	excluded := make(map[int32]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	var similaritySum float64
	for _, neighbor := range neighbors {
		similaritySum += neighbor.Similarity
	}

	scores := map[int32]float64{}
	for _, neighbor := range neighbors {
		theirPreferences, err := e.store.GetUserPreferences(ctx, neighbor.UserID)
		if err != nil {
			return nil, err
		}
		for streamerID, theirScore := range theirPreferences {
			// Dislikes and unknowns never become recommendations, not
			// even transitively.
			if theirScore <= 0 {
				continue
			}
			if _, ok := excluded[streamerID]; ok {
				continue
			}
			scores[streamerID] += neighbor.Similarity * theirScore
		}
	}

	// Weighted average rather than raw sum keeps scores comparable
	// across neighbor sets of different sizes.
	if similaritySum > 0 {
		for streamerID := range scores {
			scores[streamerID] /= similaritySum
		}
	}

	candidateIDs := make([]int32, 0, len(scores))
	for streamerID := range scores {
		candidateIDs = append(candidateIDs, streamerID)
	}
	sort.Slice(candidateIDs, func(i, j int) bool {
		if scores[candidateIDs[i]] != scores[candidateIDs[j]] {
			return scores[candidateIDs[i]] > scores[candidateIDs[j]]
		}
		return candidateIDs[i] < candidateIDs[j]
	})

	streamers, err := e.store.ListStreamers(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int32]*store.Streamer, len(streamers))
	for _, streamer := range streamers {
		byID[streamer.ID] = streamer
	}

	// Ids whose rows have since disappeared are dropped silently.
	resolved := make([]*store.Streamer, 0, len(candidateIDs))
	for _, streamerID := range candidateIDs {
		if streamer, ok := byID[streamerID]; ok {
			resolved = append(resolved, streamer)
		}
	}

	if liveChannelIDs != nil {
		live := make([]*store.Streamer, 0, len(resolved))
		liveSet := make(map[string]struct{}, len(liveChannelIDs))
		for _, channelID := range liveChannelIDs {
			liveSet[channelID] = struct{}{}
		}
		for _, streamer := range resolved {
			if streamer.YouTubeChannelID == "" {
				continue
			}
			if _, ok := liveSet[streamer.YouTubeChannelID]; ok {
				live = append(live, streamer)
			}
		}
		resolved = live
	}

	resolved = store.ApplyStreamerFilter(resolved, filter)

	candidates := make([]*RecommendedStreamer, 0, len(resolved))
	for _, streamer := range resolved {
		candidates = append(candidates, &RecommendedStreamer{
			Streamer: streamer,
			Source:   SourceCollaborative,
			Score:    scores[streamer.ID],
		})
	}
	return candidates, nil
}

func annotate(collaborative []*RecommendedStreamer, randoms []*store.Streamer) []*RecommendedStreamer {
	recommended := make([]*RecommendedStreamer, 0, len(collaborative)+len(randoms))
	recommended = append(recommended, collaborative...)
	for _, streamer := range randoms {
		recommended = append(recommended, &RecommendedStreamer{
			Streamer: streamer,
			Source:   SourceRandom,
		})
	}
	return recommended
}

// shuffle is an in-place Fisher-Yates shuffle.
func (e *Engine) shuffle(recommended []*RecommendedStreamer) {
	for i := len(recommended) - 1; i > 0; i-- {
		j := e.rand.IntN(i + 1)
		recommended[i], recommended[j] = recommended[j], recommended[i]
	}
}

// averageSimilarity is the mean neighbor similarity rounded to two
// decimals, zero for an empty neighbor list.
func averageSimilarity(neighbors []SimilarUser) float64 {
	if len(neighbors) == 0 {
		return 0
	}
	var sum float64
	for _, neighbor := range neighbors {
		sum += neighbor.Similarity
	}
	return math.Round(sum/float64(len(neighbors))*100) / 100
}
