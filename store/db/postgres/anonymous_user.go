package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/streamscout/streamscout/store"
)

func (d *DB) GetAnonymousUser(ctx context.Context, find *store.FindAnonymousUser) (*store.AnonymousUser, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.AnonymousID; v != nil {
		where, args = append(where, "anonymous_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	stmt := `SELECT id, anonymous_id, user_id, created_ts, last_active_ts
		FROM anonymous_user
		WHERE ` + joinWhere(where) + `
		LIMIT 1`

	user := &store.AnonymousUser{}
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&user.ID,
		&user.AnonymousID,
		&user.UserID,
		&user.CreatedTs,
		&user.LastActiveTs,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get anonymous user: %w", err)
	}
	return user, nil
}

func (d *DB) CreateAnonymousUser(ctx context.Context, create *store.AnonymousUser) (*store.AnonymousUser, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	if create.LastActiveTs == 0 {
		create.LastActiveTs = create.CreatedTs
	}

	stmt := `INSERT INTO anonymous_user (anonymous_id, user_id, created_ts, last_active_ts)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt,
		create.AnonymousID,
		create.UserID,
		create.CreatedTs,
		create.LastActiveTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create anonymous user: %w", err)
	}
	return create, nil
}
