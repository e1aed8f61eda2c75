package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

// PreferenceAction is a user's recorded reaction to a streamer.
type PreferenceAction string

const (
	PreferenceActionLike    PreferenceAction = "LIKE"
	PreferenceActionSoso    PreferenceAction = "SOSO"
	PreferenceActionDislike PreferenceAction = "DISLIKE"
)

// Score maps an action to the numeric score used by the recommendation
// engine. Unknown actions score zero and contribute nothing.
func (a PreferenceAction) Score() float64 {
	switch a {
	case PreferenceActionLike:
		return 1.0
	case PreferenceActionSoso:
		return 0.5
	case PreferenceActionDislike:
		return -1.0
	default:
		return 0.0
	}
}

// Preference is the object representing a user's reaction to a streamer.
// Only the latest action per (user, streamer) pair matters for scoring.
type Preference struct {
	ID              int32
	AnonymousUserID int32
	StreamerID      int32
	Action          PreferenceAction
	CreatedTs       int64
}

// UpsertPreference is the upsert request for a preference.
type UpsertPreference struct {
	AnonymousUserID int32
	StreamerID      int32
	Action          PreferenceAction
}

// DeletePreference is the delete request for a preference.
type DeletePreference struct {
	AnonymousUserID int32
	StreamerID      int32
}

// FindActiveUserIDs selects users with at least MinActions preferences in
// the trailing WindowDays days.
type FindActiveUserIDs struct {
	MinActions int
	WindowDays int
}

// DefaultActiveUserWindowDays is the trailing window that qualifies a user
// as active for collaborative filtering.
const DefaultActiveUserWindowDays = 30

// UpsertPreference records a reaction and keeps the caches coherent: the
// user's action list gains the streamer in place, and their preference
// vector plus any similarity entries involving them are dropped.
func (s *Store) UpsertPreference(ctx context.Context, upsert *UpsertPreference) (*Preference, error) {
	preference, err := s.driver.UpsertPreference(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.AddUserAction(ctx, upsert.AnonymousUserID, upsert.StreamerID)
	s.InvalidateUserPreferences(ctx, upsert.AnonymousUserID)
	return preference, nil
}

// DeletePreference removes a reaction and keeps the caches coherent.
func (s *Store) DeletePreference(ctx context.Context, delete *DeletePreference) error {
	if err := s.driver.DeletePreference(ctx, delete); err != nil {
		return err
	}
	s.RemoveUserAction(ctx, delete.AnonymousUserID, delete.StreamerID)
	s.InvalidateUserPreferences(ctx, delete.AnonymousUserID)
	return nil
}

// ListUserActionedStreamerIDs returns the distinct streamer ids the user
// has any preference for, cached per user.
func (s *Store) ListUserActionedStreamerIDs(ctx context.Context, userID int32) ([]int32, error) {
	key := userCacheKey(userID)
	if v, ok := s.userActionCache.Get(ctx, key); ok {
		return v.([]int32), nil
	}

	streamerIDs, err := s.driver.ListActedStreamerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.userActionCache.Set(ctx, key, streamerIDs)
	slog.Debug("cached user actions", "user_id", userID, "count", len(streamerIDs))
	return streamerIDs, nil
}

// AddUserAction appends a streamer id to an already-cached action list.
// It only mutates an existing entry in place: it never creates one, never
// duplicates an id, and never resets the entry's TTL. TTL-driven refetch
// remains the convergence backstop for the cache-miss case.
func (s *Store) AddUserAction(ctx context.Context, userID, streamerID int32) {
	s.userActionCache.Update(ctx, userCacheKey(userID), func(value any) any {
		ids := value.([]int32)
		if slices.Contains(ids, streamerID) {
			return ids
		}
		return append(ids, streamerID)
	})
}

// RemoveUserAction removes a streamer id from an already-cached action
// list. A safe no-op when the entry is not cached or the id is absent.
func (s *Store) RemoveUserAction(ctx context.Context, userID, streamerID int32) {
	s.userActionCache.Update(ctx, userCacheKey(userID), func(value any) any {
		ids := value.([]int32)
		if i := slices.Index(ids, streamerID); i >= 0 {
			return slices.Delete(slices.Clone(ids), i, i+1)
		}
		return ids
	})
}

// GetUserPreferences returns the user's streamer id -> score vector,
// cached per user.
func (s *Store) GetUserPreferences(ctx context.Context, userID int32) (map[int32]float64, error) {
	key := userCacheKey(userID)
	if v, ok := s.userPreferenceCache.Get(ctx, key); ok {
		return v.(map[int32]float64), nil
	}

	actions, err := s.driver.GetUserPreferenceVector(ctx, userID)
	if err != nil {
		return nil, err
	}
	preferences := make(map[int32]float64, len(actions))
	for streamerID, action := range actions {
		preferences[streamerID] = action.Score()
	}
	s.userPreferenceCache.Set(ctx, key, preferences)
	slog.Debug("cached user preferences", "user_id", userID, "count", len(preferences))
	return preferences, nil
}

// ListActiveUserIDs returns ids of users with at least minActions
// preferences inside the default trailing window, cached per threshold.
func (s *Store) ListActiveUserIDs(ctx context.Context, minActions int) ([]int32, error) {
	key := strconv.Itoa(minActions)
	if v, ok := s.activeUserCache.Get(ctx, key); ok {
		return v.([]int32), nil
	}

	userIDs, err := s.driver.ListActiveUserIDs(ctx, &FindActiveUserIDs{
		MinActions: minActions,
		WindowDays: DefaultActiveUserWindowDays,
	})
	if err != nil {
		return nil, err
	}
	s.activeUserCache.Set(ctx, key, userIDs)
	slog.Debug("cached active user ids", "min_actions", minActions, "count", len(userIDs))
	return userIDs, nil
}

// GetUserSimilarity returns the cached similarity for an unordered user
// pair.
func (s *Store) GetUserSimilarity(ctx context.Context, userA, userB int32) (float64, bool) {
	v, ok := s.similarityCache.Get(ctx, similarityCacheKey(userA, userB))
	if !ok {
		return 0, false
	}
	return v.(float64), true
}

// SetUserSimilarity caches the similarity for an unordered user pair.
func (s *Store) SetUserSimilarity(ctx context.Context, userA, userB int32, similarity float64) {
	s.similarityCache.Set(ctx, similarityCacheKey(userA, userB), similarity)
}

// InvalidateUserPreferences drops a user's cached preference vector along
// with every cached similarity involving them.
func (s *Store) InvalidateUserPreferences(ctx context.Context, userID int32) {
	s.userPreferenceCache.Delete(ctx, userCacheKey(userID))

	prefix := strconv.FormatInt(int64(userID), 10) + "-"
	suffix := "-" + strconv.FormatInt(int64(userID), 10)
	var stale []string
	s.similarityCache.Range(func(key string, _ any) bool {
		if strings.HasPrefix(key, prefix) || strings.HasSuffix(key, suffix) {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		s.similarityCache.Delete(ctx, key)
	}
	slog.Debug("invalidated user preference caches", "user_id", userID, "similarities", len(stale))
}

func userCacheKey(userID int32) string {
	return strconv.FormatInt(int64(userID), 10)
}

// similarityCacheKey normalizes the pair so (a, b) and (b, a) share one
// entry.
func similarityCacheKey(userA, userB int32) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d-%d", userA, userB)
}
