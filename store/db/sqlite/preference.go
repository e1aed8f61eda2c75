package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/streamscout/streamscout/store"
)

func (d *DB) UpsertPreference(ctx context.Context, upsert *store.UpsertPreference) (*store.Preference, error) {
	now := time.Now().Unix()

	stmt := `INSERT INTO preference (anonymous_user_id, streamer_id, action, created_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (anonymous_user_id, streamer_id) DO UPDATE SET
			action = EXCLUDED.action,
			created_ts = EXCLUDED.created_ts
		RETURNING id, anonymous_user_id, streamer_id, action, created_ts`

	preference := &store.Preference{}
	if err := d.db.QueryRowContext(ctx, stmt, upsert.AnonymousUserID, upsert.StreamerID, string(upsert.Action), now).Scan(
		&preference.ID,
		&preference.AnonymousUserID,
		&preference.StreamerID,
		&preference.Action,
		&preference.CreatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert preference: %w", err)
	}
	return preference, nil
}

func (d *DB) DeletePreference(ctx context.Context, delete *store.DeletePreference) error {
	stmt := `DELETE FROM preference WHERE anonymous_user_id = ? AND streamer_id = ?`
	if _, err := d.db.ExecContext(ctx, stmt, delete.AnonymousUserID, delete.StreamerID); err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return nil
}

func (d *DB) ListActedStreamerIDs(ctx context.Context, userID int32) ([]int32, error) {
	stmt := `SELECT DISTINCT streamer_id FROM preference WHERE anonymous_user_id = ?`

	rows, err := d.db.QueryContext(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list acted streamer ids: %w", err)
	}
	defer rows.Close()

	streamerIDs := []int32{}
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan streamer id: %w", err)
		}
		streamerIDs = append(streamerIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate streamer ids: %w", err)
	}
	return streamerIDs, nil
}

func (d *DB) ListActiveUserIDs(ctx context.Context, find *store.FindActiveUserIDs) ([]int32, error) {
	var cutoffTs int64
	if find.WindowDays > 0 {
		cutoffTs = time.Now().AddDate(0, 0, -find.WindowDays).Unix()
	}

	stmt := `SELECT anonymous_user_id
		FROM preference
		WHERE created_ts >= ?
		GROUP BY anonymous_user_id
		HAVING COUNT(*) >= ?`

	rows, err := d.db.QueryContext(ctx, stmt, cutoffTs, find.MinActions)
	if err != nil {
		return nil, fmt.Errorf("failed to list active user ids: %w", err)
	}
	defer rows.Close()

	userIDs := []int32{}
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user ids: %w", err)
	}
	return userIDs, nil
}

func (d *DB) GetUserPreferenceVector(ctx context.Context, userID int32) (map[int32]store.PreferenceAction, error) {
	stmt := `SELECT streamer_id, action FROM preference WHERE anonymous_user_id = ?`

	rows, err := d.db.QueryContext(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user preference vector: %w", err)
	}
	defer rows.Close()

	vector := map[int32]store.PreferenceAction{}
	for rows.Next() {
		var streamerID int32
		var action string
		if err := rows.Scan(&streamerID, &action); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		vector[streamerID] = store.PreferenceAction(action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate preferences: %w", err)
	}
	return vector, nil
}
