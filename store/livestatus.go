package store

import (
	"context"
	"log/slog"
)

// LiveStreamInfo is the live-broadcast state of one channel, keyed by the
// platform channel id. It comes from an external poller; the store only
// caches it.
type LiveStreamInfo struct {
	ChannelID     string
	IsLive        bool
	Title         string
	VideoID       string
	ViewerCount   int64
	LastCheckedTs int64
}

// GetLiveStatus returns the cached live-status map while fresh. The TTL is
// much longer than the entity cache's, on purpose: it bounds third-party
// API usage, and freshness comes from the poller, not from readers.
func (s *Store) GetLiveStatus(ctx context.Context) (map[string]*LiveStreamInfo, bool) {
	v, ok := s.liveStatusCache.Get(ctx, liveStatusCacheKey)
	if !ok {
		return nil, false
	}
	return v.(map[string]*LiveStreamInfo), true
}

// GetLiveStatusStale returns the cached live-status map even past its TTL,
// as a fallback when the poller cannot reach the platform APIs. The second
// return reports staleness.
func (s *Store) GetLiveStatusStale(ctx context.Context) (map[string]*LiveStreamInfo, bool, bool) {
	v, expired, ok := s.liveStatusCache.GetStale(ctx, liveStatusCacheKey)
	if !ok {
		return nil, false, false
	}
	if expired {
		slog.Debug("serving stale live status")
	}
	return v.(map[string]*LiveStreamInfo), expired, true
}

// SetLiveStatus replaces the live-status map. Called by the poll runner.
func (s *Store) SetLiveStatus(ctx context.Context, statuses map[string]*LiveStreamInfo) {
	s.liveStatusCache.Set(ctx, liveStatusCacheKey, statuses)
	slog.Debug("cached live status", "channels", len(statuses))
}

// LiveChannelIDs returns the channel ids currently live, for the live-only
// streamer filter. The boolean reports whether any (possibly stale) status
// is available at all.
func (s *Store) LiveChannelIDs(ctx context.Context) ([]string, bool) {
	statuses, _, ok := s.GetLiveStatusStale(ctx)
	if !ok {
		return nil, false
	}
	channelIDs := make([]string, 0, len(statuses))
	for channelID, info := range statuses {
		if info.IsLive {
			channelIDs = append(channelIDs, channelID)
		}
	}
	return channelIDs, true
}
