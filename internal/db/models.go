package db

import "time"

// expiryMargin is subtracted from the declared token lifetime so a token
// is treated as expired slightly before the provider rejects it.
const expiryMargin = 60 * time.Second

// Credential is the delegated access/refresh token pair obtained from the
// streaming provider on the user's behalf. It is replaced wholesale on
// refresh; only the token fields are ever overwritten for an existing user.
type Credential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64 // declared lifetime in seconds
	IssuedAt     time.Time
	Scope        string
}

// ExpiredAt reports whether the credential is expired at the given instant,
// applying the safety margin to the declared lifetime.
func (c Credential) ExpiredAt(now time.Time) bool {
	deadline := c.IssuedAt.Add(time.Duration(c.ExpiresIn)*time.Second - expiryMargin)
	return now.After(deadline)
}

// Expired reports whether the credential is expired now.
func (c Credential) Expired() bool {
	return c.ExpiredAt(time.Now())
}

// ProfileImage is the user's streaming-provider avatar.
type ProfileImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// User is one authenticated streaming-provider identity with its current
// delegated credential. Display name, email and image are optional on the
// provider side and stay nil when absent.
type User struct {
	ID          string
	DisplayName *string
	Email       *string
	Image       *ProfileImage
	Credential  Credential
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ArtistRef identifies an artist in the metadata provider's catalog.
type ArtistRef struct {
	MBID string `json:"mbid"`
	Name string `json:"name"`
}

// CoverImage is one album cover rendition.
type CoverImage struct {
	URL  string `json:"url"`
	Size string `json:"size"`
}

// AlbumRef identifies an album with its cover art.
type AlbumRef struct {
	MBID   string       `json:"mbid"`
	Title  string       `json:"title"`
	Images []CoverImage `json:"coverImages"`
}

// TrackMetadata is enriched track metadata keyed by the streaming provider's
// track id. Once written for a given id it is treated as immutable; lookups
// never trigger a re-fetch.
type TrackMetadata struct {
	SpotifyID  string
	MBID       string
	Title      string
	DurationMs int
	Artist     ArtistRef
	Album      AlbumRef
	Genres     []string
	CreatedAt  time.Time
}

// HistoryEntry records a single observed play. At most one entry exists per
// (user, track, played-at) triple; the storage layer enforces the constraint
// so a concurrent duplicate insert is ignored rather than doubled.
type HistoryEntry struct {
	UserID     string
	TrackID    string
	PlayedAtMs int64
	CreatedAt  time.Time
}

// PlayedTrack pairs cached metadata with a play timestamp; it is the unit
// returned by the reconciler and by history reads.
type PlayedTrack struct {
	Track      TrackMetadata
	PlayedAtMs int64
}
