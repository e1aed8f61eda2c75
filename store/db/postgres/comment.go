package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/streamscout/streamscout/store"
)

func (d *DB) ListComments(ctx context.Context, find *store.FindComment) ([]*store.Comment, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.StreamerID; v != nil {
		where, args = append(where, "streamer_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	stmt := `SELECT id, uid, streamer_id, user_id, content, comment_type, created_ts
		FROM comment
		WHERE ` + joinWhere(where) + `
		ORDER BY created_ts DESC`

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	list := []*store.Comment{}
	for rows.Next() {
		comment := &store.Comment{}
		if err := rows.Scan(
			&comment.ID,
			&comment.UID,
			&comment.StreamerID,
			&comment.UserID,
			&comment.Content,
			&comment.Type,
			&comment.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		list = append(list, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return list, nil
}

// CreateCommentsBatch inserts the whole batch in one round trip.
func (d *DB) CreateCommentsBatch(ctx context.Context, creates []*store.Comment) error {
	if len(creates) == 0 {
		return nil
	}

	const fieldCount = 6
	values := make([]string, 0, len(creates))
	args := make([]any, 0, len(creates)*fieldCount)
	for i, create := range creates {
		createdTs := create.CreatedTs
		if createdTs == 0 {
			createdTs = time.Now().Unix()
		}
		values = append(values, "("+placeholders(i*fieldCount, fieldCount)+")")
		args = append(args, create.UID, create.StreamerID, create.UserID, create.Content, string(create.Type), createdTs)
	}

	stmt := `INSERT INTO comment (uid, streamer_id, user_id, content, comment_type, created_ts)
		VALUES ` + strings.Join(values, ", ")

	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to create %d comments: %w", len(creates), err)
	}
	return nil
}
