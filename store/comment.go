package store

import (
	"context"
	"log/slog"
	"strconv"
)

// CommentType distinguishes plain comments from recommendation writeups.
type CommentType string

const (
	CommentTypeNormal         CommentType = "normal"
	CommentTypeRecommendation CommentType = "recommendation"
)

// Comment is the object representing a comment on a streamer.
type Comment struct {
	ID         int32
	UID        string
	StreamerID int32
	UserID     int32
	Content    string
	Type       CommentType
	CreatedTs  int64
}

// FindComment is the find condition for comments.
type FindComment struct {
	StreamerID *int32
}

// ListCommentsByStreamer returns a streamer's comments, newest first,
// cached with a short TTL to stay close to real time.
func (s *Store) ListCommentsByStreamer(ctx context.Context, streamerID int32) ([]*Comment, error) {
	key := commentCacheKey(streamerID)
	if v, ok := s.commentCache.Get(ctx, key); ok {
		return v.([]*Comment), nil
	}

	comments, err := s.driver.ListComments(ctx, &FindComment{StreamerID: &streamerID})
	if err != nil {
		return nil, err
	}
	s.commentCache.Set(ctx, key, comments)
	slog.Debug("cached comments", "streamer_id", streamerID, "count", len(comments))
	return comments, nil
}

// InvalidateComments drops the cached comment list for a streamer. The
// write buffer calls this after a successful comment flush; it is the only
// sanctioned way into this cache from outside the store.
func (s *Store) InvalidateComments(ctx context.Context, streamerID int32) {
	slog.Debug("invalidating comments cache", "streamer_id", streamerID)
	s.commentCache.Delete(ctx, commentCacheKey(streamerID))
}

func commentCacheKey(streamerID int32) string {
	return strconv.FormatInt(int64(streamerID), 10)
}

// CreateCommentsBatch persists a batch of comments as one multi-row
// insert.
func (s *Store) CreateCommentsBatch(ctx context.Context, creates []*Comment) error {
	return s.driver.CreateCommentsBatch(ctx, creates)
}
