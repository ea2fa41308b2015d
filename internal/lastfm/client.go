// Package lastfm is a client for the metadata/recommendation provider. It
// covers the two lookups this system consumes: track info (enrichment) and
// similar tracks (recommendations).
package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"
	userAgent      = "music-tracker/1.0"
)

// Provider API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrTrackNotFound means the provider has no record for the requested
	// track. Callers treat this as an enrichment miss, not a failure.
	ErrTrackNotFound = errors.New("track not found")

	// ErrInvalidAPIKey is returned when the API key is rejected.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrRateLimited is returned when the provider throttles the request.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Client is a metadata provider API client.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new metadata provider client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TrackInfo looks a track up by artist name and title. The provider is a
// separate catalog from the streaming provider, so the lookup is by name,
// never by streaming-provider id. Returns ErrTrackNotFound when the provider
// has no record.
func (c *Client) TrackInfo(ctx context.Context, artist, title string) (*Track, error) {
	params := url.Values{
		"method":  {"track.getInfo"},
		"artist":  {artist},
		"track":   {title},
		"format":  {"json"},
		"api_key": {c.apiKey},
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching track info: %w", err)
	}

	var resp trackInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing track info response: %w", err)
	}
	if resp.Track == nil {
		return nil, ErrTrackNotFound
	}

	track := &Track{
		MBID:   resp.Track.MBID,
		Title:  resp.Track.Name,
		Genres: []string{},
	}
	if resp.Track.Artist != nil {
		track.Artist = Artist{MBID: resp.Track.Artist.MBID, Name: resp.Track.Artist.Name}
	}
	if resp.Track.Album != nil {
		track.Album = Album{
			MBID:   resp.Track.Album.MBID,
			Title:  resp.Track.Album.Title,
			Images: convertImages(resp.Track.Album.Images),
		}
	}
	if resp.Track.TopTags != nil {
		for _, tag := range resp.Track.TopTags.Tag {
			if tag.Name != "" {
				track.Genres = append(track.Genres, tag.Name)
			}
		}
	}
	return track, nil
}

// SimilarTracks fetches recommendations for a seed track selected by MBID
// or by artist and title.
func (c *Client) SimilarTracks(ctx context.Context, p SimilarParams) ([]SimilarTrack, error) {
	params := url.Values{
		"method":  {"track.getsimilar"},
		"format":  {"json"},
		"api_key": {c.apiKey},
	}
	if p.MBID != "" {
		params.Set("mbid", p.MBID)
	} else {
		params.Set("artist", p.Artist)
		params.Set("track", p.Title)
	}
	if p.Limit > 0 {
		params.Set("limit", strconv.Itoa(p.Limit))
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching similar tracks: %w", err)
	}

	var resp similarTracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing similar tracks response: %w", err)
	}
	if resp.SimilarTracks == nil {
		return nil, ErrTrackNotFound
	}

	tracks := make([]SimilarTrack, 0, len(resp.SimilarTracks.Track))
	for _, item := range resp.SimilarTracks.Track {
		track := SimilarTrack{
			MBID:   item.MBID,
			Title:  item.Name,
			Images: convertImages(item.Images),
		}
		if item.Artist != nil {
			track.Artist = Artist{MBID: item.Artist.MBID, Name: item.Artist.Name}
		}
		if match, err := item.Match.Float64(); err == nil {
			track.Match = match
		}
		if duration, err := item.Duration.Int64(); err == nil {
			track.DurationMs = int(duration)
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// doRequest performs a single GET and unwraps the provider's error envelope.
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeInvalidParams:
			return nil, ErrTrackNotFound
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeRateLimited:
			return nil, ErrRateLimited
		default:
			return nil, fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	return body, nil
}

func convertImages(images []wireImage) []Image {
	converted := make([]Image, 0, len(images))
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		converted = append(converted, Image{URL: img.URL, Size: img.Size})
	}
	return converted
}
