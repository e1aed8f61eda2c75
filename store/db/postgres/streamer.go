package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/streamscout/streamscout/store"
)

func (d *DB) ListStreamers(ctx context.Context) ([]*store.Streamer, error) {
	stmt := `SELECT
			id,
			name,
			platform,
			COALESCE(avatar_url, ''),
			COALESCE(description, ''),
			COALESCE(tags, '{}'),
			follower_count,
			COALESCE(channel_url, ''),
			COALESCE(youtube_channel_id, ''),
			COALESCE(twitch_user_id, ''),
			COALESCE(video_id, ''),
			created_ts
		FROM streamer`

	rows, err := d.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list streamers: %w", err)
	}
	defer rows.Close()

	list := []*store.Streamer{}
	for rows.Next() {
		streamer := &store.Streamer{}
		if err := rows.Scan(
			&streamer.ID,
			&streamer.Name,
			&streamer.Platform,
			&streamer.AvatarURL,
			&streamer.Description,
			pq.Array(&streamer.Tags),
			&streamer.FollowerCount,
			&streamer.ChannelURL,
			&streamer.YouTubeChannelID,
			&streamer.TwitchUserID,
			&streamer.VideoID,
			&streamer.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan streamer: %w", err)
		}
		list = append(list, streamer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate streamers: %w", err)
	}
	return list, nil
}

func (d *DB) ListStreamersByAction(ctx context.Context, find *store.FindStreamersByAction) ([]*store.Streamer, error) {
	where, args := []string{"preference.anonymous_user_id = " + placeholder(1)}, []any{find.UserID}
	if find.Action != nil {
		where, args = append(where, "preference.action = "+placeholder(len(args)+1)), append(args, string(*find.Action))
	}

	stmt := `SELECT
			streamer.id,
			streamer.name,
			streamer.platform,
			COALESCE(streamer.avatar_url, ''),
			COALESCE(streamer.description, ''),
			COALESCE(streamer.tags, '{}'),
			streamer.follower_count,
			COALESCE(streamer.channel_url, ''),
			COALESCE(streamer.youtube_channel_id, ''),
			COALESCE(streamer.twitch_user_id, ''),
			COALESCE(streamer.video_id, ''),
			streamer.created_ts
		FROM streamer
		INNER JOIN preference ON streamer.id = preference.streamer_id
		WHERE ` + joinWhere(where) + `
		GROUP BY streamer.id
		ORDER BY MAX(preference.created_ts) DESC`

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list streamers by action: %w", err)
	}
	defer rows.Close()

	list := []*store.Streamer{}
	for rows.Next() {
		streamer := &store.Streamer{}
		if err := rows.Scan(
			&streamer.ID,
			&streamer.Name,
			&streamer.Platform,
			&streamer.AvatarURL,
			&streamer.Description,
			pq.Array(&streamer.Tags),
			&streamer.FollowerCount,
			&streamer.ChannelURL,
			&streamer.YouTubeChannelID,
			&streamer.TwitchUserID,
			&streamer.VideoID,
			&streamer.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan streamer: %w", err)
		}
		list = append(list, streamer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate streamers: %w", err)
	}
	return list, nil
}
