package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Streamer model related methods.
	ListStreamers(ctx context.Context) ([]*Streamer, error)
	ListStreamersByAction(ctx context.Context, find *FindStreamersByAction) ([]*Streamer, error)

	// Preference model related methods.
	UpsertPreference(ctx context.Context, upsert *UpsertPreference) (*Preference, error)
	DeletePreference(ctx context.Context, delete *DeletePreference) error
	ListActedStreamerIDs(ctx context.Context, userID int32) ([]int32, error)
	ListActiveUserIDs(ctx context.Context, find *FindActiveUserIDs) ([]int32, error)
	GetUserPreferenceVector(ctx context.Context, userID int32) (map[int32]PreferenceAction, error)

	// TagCategory model related methods.
	ListTagCategories(ctx context.Context) ([]*TagCategory, error)

	// Comment model related methods.
	ListComments(ctx context.Context, find *FindComment) ([]*Comment, error)
	CreateCommentsBatch(ctx context.Context, creates []*Comment) error

	// ContactMessage model related methods.
	CreateContactMessagesBatch(ctx context.Context, creates []*ContactMessage) error

	// AnonymousUser model related methods.
	GetAnonymousUser(ctx context.Context, find *FindAnonymousUser) (*AnonymousUser, error)
	CreateAnonymousUser(ctx context.Context, create *AnonymousUser) (*AnonymousUser, error)
}
