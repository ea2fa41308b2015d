package spotify

import "time"

// TokenResponse is the provider's token-endpoint payload for both the
// authorization_code and refresh_token grants. RefreshToken may be empty on
// a refresh; the previously issued refresh token then remains valid.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// Image is an image resource with optional dimensions.
type Image struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

// UserProfile is the current-user profile resource. Only the id is
// mandatory; everything else may be absent.
type UserProfile struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName string  `json:"display_name"`
	Images      []Image `json:"images"`
}

// PlayObservation is one track play from the recently-played feed. It is
// transient: it exists only for the duration of a reconciliation pass.
type PlayObservation struct {
	TrackID    string
	Title      string
	Artist     string
	Album      string
	DurationMs int
	PlayedAtMs int64
}

// TrackResult is the best-match track returned by a search.
type TrackResult struct {
	ID         string
	Title      string
	Artist     string
	Album      string
	DurationMs int
}

type artistObject struct {
	Name string `json:"name"`
}

type albumObject struct {
	Name string `json:"name"`
}

type trackObject struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	DurationMs int            `json:"duration_ms"`
	Artists    []artistObject `json:"artists"`
	Album      albumObject    `json:"album"`
}

type recentlyPlayedResponse struct {
	Items []struct {
		Track    trackObject `json:"track"`
		PlayedAt time.Time   `json:"played_at"`
	} `json:"items"`
}

type searchResponse struct {
	Tracks struct {
		Items []trackObject `json:"items"`
	} `json:"tracks"`
}

type playlistResponse struct {
	ID string `json:"id"`
}
