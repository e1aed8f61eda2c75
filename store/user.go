package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// AnonymousUser is the object representing a visitor identity. Visitors
// get a UUID before any login; preferences hang off this id.
type AnonymousUser struct {
	ID           int32
	AnonymousID  string
	UserID       *int32
	CreatedTs    int64
	LastActiveTs int64
}

// FindAnonymousUser is the find condition for anonymous users.
type FindAnonymousUser struct {
	ID          *int32
	AnonymousID *string
}

// NewAnonymousID generates a fresh anonymous identity.
func NewAnonymousID() string {
	return uuid.NewString()
}

// GetAnonymousUserByAnonymousID returns the user with the given anonymous
// id, cached. Returns nil when absent.
func (s *Store) GetAnonymousUserByAnonymousID(ctx context.Context, anonymousID string) (*AnonymousUser, error) {
	if _, err := uuid.Parse(anonymousID); err != nil {
		return nil, errors.Wrap(err, "invalid anonymous id")
	}

	if v, ok := s.userCache.Get(ctx, anonymousID); ok {
		return v.(*AnonymousUser), nil
	}

	user, err := s.driver.GetAnonymousUser(ctx, &FindAnonymousUser{AnonymousID: &anonymousID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	s.userCache.Set(ctx, anonymousID, user)
	return user, nil
}

// CreateAnonymousUser registers a new visitor identity and caches it.
func (s *Store) CreateAnonymousUser(ctx context.Context, create *AnonymousUser) (*AnonymousUser, error) {
	if create.AnonymousID == "" {
		create.AnonymousID = NewAnonymousID()
	} else if _, err := uuid.Parse(create.AnonymousID); err != nil {
		return nil, errors.Wrap(err, "invalid anonymous id")
	}

	user, err := s.driver.CreateAnonymousUser(ctx, create)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(ctx, user.AnonymousID, user)
	return user, nil
}
