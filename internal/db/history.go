package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryRepository is the PostgreSQL listening-history ledger.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// Exists reports whether an entry with the composite identity is recorded.
func (r *HistoryRepository) Exists(ctx context.Context, userID, trackID string, playedAtMs int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM listening_history
			WHERE user_id = $1 AND track_id = $2 AND played_at_ms = $3
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, trackID, playedAtMs).Scan(&exists); err != nil {
		return false, fmt.Errorf("querying history entry: %w", err)
	}
	return exists, nil
}

// Append records a play. The composite primary key turns a duplicate insert
// into a no-op.
func (r *HistoryRepository) Append(ctx context.Context, entry HistoryEntry) error {
	query := `
		INSERT INTO listening_history (user_id, track_id, played_at_ms, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, track_id, played_at_ms) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, entry.UserID, entry.TrackID, entry.PlayedAtMs); err != nil {
		return fmt.Errorf("appending history entry: %w", err)
	}
	return nil
}

// ListDescending returns up to limit entries newest-first, enriched from the
// track cache. The inner join drops entries whose metadata was never cached.
func (r *HistoryRepository) ListDescending(ctx context.Context, userID string, limit int, before *int64) ([]PlayedTrack, error) {
	query := `
		SELECT t.spotify_id, t.mbid, t.title, t.duration_ms,
		       t.artist_mbid, t.artist_name, t.album_mbid, t.album_title,
		       t.album_images, t.genres, t.created_at,
		       h.played_at_ms
		FROM listening_history h
		JOIN track_cache t ON t.spotify_id = h.track_id
		WHERE h.user_id = $1 AND ($2::bigint IS NULL OR h.played_at_ms < $2)
		ORDER BY h.played_at_ms DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, userID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var plays []PlayedTrack
	for rows.Next() {
		var (
			play   PlayedTrack
			images []byte
		)
		if err := rows.Scan(
			&play.Track.SpotifyID,
			&play.Track.MBID,
			&play.Track.Title,
			&play.Track.DurationMs,
			&play.Track.Artist.MBID,
			&play.Track.Artist.Name,
			&play.Track.Album.MBID,
			&play.Track.Album.Title,
			&images,
			&play.Track.Genres,
			&play.Track.CreatedAt,
			&play.PlayedAtMs,
		); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if err := json.Unmarshal(images, &play.Track.Album.Images); err != nil {
			return nil, fmt.Errorf("decoding album images: %w", err)
		}
		plays = append(plays, play)
	}
	return plays, rows.Err()
}
