package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TrackCacheRepository is the PostgreSQL track metadata cache.
type TrackCacheRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves cached metadata by streaming-provider track id.
func (r *TrackCacheRepository) Get(ctx context.Context, spotifyID string) (*TrackMetadata, error) {
	query := `
		SELECT spotify_id, mbid, title, duration_ms,
		       artist_mbid, artist_name, album_mbid, album_title, album_images, genres,
		       created_at
		FROM track_cache
		WHERE spotify_id = $1
	`
	var (
		meta   TrackMetadata
		images []byte
	)
	err := r.pool.QueryRow(ctx, query, spotifyID).Scan(
		&meta.SpotifyID,
		&meta.MBID,
		&meta.Title,
		&meta.DurationMs,
		&meta.Artist.MBID,
		&meta.Artist.Name,
		&meta.Album.MBID,
		&meta.Album.Title,
		&images,
		&meta.Genres,
		&meta.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying track cache: %w", err)
	}

	if err := json.Unmarshal(images, &meta.Album.Images); err != nil {
		return nil, fmt.Errorf("decoding album images: %w", err)
	}
	return &meta, nil
}

// Put inserts or replaces metadata under meta.SpotifyID.
func (r *TrackCacheRepository) Put(ctx context.Context, meta *TrackMetadata) error {
	images, err := json.Marshal(meta.Album.Images)
	if err != nil {
		return fmt.Errorf("encoding album images: %w", err)
	}

	query := `
		INSERT INTO track_cache (spotify_id, mbid, title, duration_ms,
		                         artist_mbid, artist_name, album_mbid, album_title,
		                         album_images, genres, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (spotify_id) DO UPDATE SET
			mbid = EXCLUDED.mbid,
			title = EXCLUDED.title,
			duration_ms = EXCLUDED.duration_ms,
			artist_mbid = EXCLUDED.artist_mbid,
			artist_name = EXCLUDED.artist_name,
			album_mbid = EXCLUDED.album_mbid,
			album_title = EXCLUDED.album_title,
			album_images = EXCLUDED.album_images,
			genres = EXCLUDED.genres
		RETURNING created_at
	`
	err = r.pool.QueryRow(ctx, query,
		meta.SpotifyID,
		meta.MBID,
		meta.Title,
		meta.DurationMs,
		meta.Artist.MBID,
		meta.Artist.Name,
		meta.Album.MBID,
		meta.Album.Title,
		images,
		meta.Genres,
	).Scan(&meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting track metadata: %w", err)
	}
	return nil
}
