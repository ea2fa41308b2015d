// Package db provides persistence for user credentials, cached track
// metadata and the listening-history ledger. Two implementations exist: a
// PostgreSQL store backed by pgx and an in-memory store used for
// development and tests.
package db

import (
	"context"
	"errors"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
)

// UserStore persists one profile record per authenticated identity.
type UserStore interface {
	// Get retrieves a user by streaming-provider id. Returns ErrNotFound
	// when no such user exists.
	Get(ctx context.Context, id string) (*User, error)

	// Upsert inserts the full profile for a new user. For an existing user
	// only the credential fields are overwritten; display name, email and
	// image are left untouched.
	Upsert(ctx context.Context, user *User) error

	// UpdateCredential replaces the stored credential after a refresh. An
	// empty RefreshToken preserves the previously stored refresh token,
	// since the provider's refresh grant may omit it.
	UpdateCredential(ctx context.Context, id string, cred Credential) error
}

// TrackCacheStore is the never-evicted metadata cache keyed by the streaming
// provider's track id.
type TrackCacheStore interface {
	// Get retrieves cached metadata. Returns ErrNotFound on a miss.
	Get(ctx context.Context, spotifyID string) (*TrackMetadata, error)

	// Put inserts or replaces metadata under meta.SpotifyID.
	Put(ctx context.Context, meta *TrackMetadata) error
}

// HistoryStore is the listening-history ledger.
type HistoryStore interface {
	// Exists reports whether an entry with the given composite identity
	// has been recorded.
	Exists(ctx context.Context, userID, trackID string, playedAtMs int64) (bool, error)

	// Append records a play. Inserting an identity that already exists is
	// a no-op, which makes the insert itself the deduplication point.
	Append(ctx context.Context, entry HistoryEntry) error

	// ListDescending returns up to limit entries in reverse-chronological
	// order, joined with their cached metadata. Entries whose metadata is
	// missing from the cache are silently omitted. A non-nil before is a
	// pagination cursor: only entries strictly older than it are returned.
	ListDescending(ctx context.Context, userID string, limit int, before *int64) ([]PlayedTrack, error)
}

// Store bundles the three persistence contracts.
type Store interface {
	Users() UserStore
	TrackCache() TrackCacheStore
	History() HistoryStore
}
