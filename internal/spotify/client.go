// Package spotify is a client for the streaming provider's OAuth and REST
// surface: token grants, the current-user profile, the recently-played feed,
// track search and playlist manipulation.
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://accounts.spotify.com/authorize"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	defaultAPIURL   = "https://api.spotify.com/v1"
)

// Scopes requested at login.
var scopes = []string{
	"user-read-recently-played",
	"user-read-email",
	"playlist-modify-public",
	"playlist-modify-private",
}

// Sentinel errors.
var (
	// ErrNoMatch is returned by SearchTrack when the provider has no
	// matching track.
	ErrNoMatch = errors.New("no matching track")

	// ErrMalformedResponse is returned when a provider payload lacks a
	// field this client treats as mandatory.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// APIError is a non-success response from the provider.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify API error: status %d", e.StatusCode)
}

// Client talks to the streaming provider. All authenticated calls take the
// bearer token explicitly; the client itself holds no per-user state.
type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	apiURL     string
	tokenURL   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIURL overrides the REST base URL (used by tests).
func WithAPIURL(u string) Option {
	return func(c *Client) { c.apiURL = u }
}

// WithTokenURL overrides the token endpoint (used by tests).
func WithTokenURL(u string) Option {
	return func(c *Client) {
		c.tokenURL = u
		c.oauth.Endpoint.TokenURL = u
	}
}

// NewClient creates a Client with the application's registered credentials.
func NewClient(clientID, clientSecret, redirectURI string, opts ...Option) *Client {
	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  defaultAuthURL,
				TokenURL: defaultTokenURL,
			},
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiURL:     defaultAPIURL,
		tokenURL:   defaultTokenURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthURL returns the provider authorization URL for the login redirect.
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a delegated credential.
func (c *Client) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response missing access_token", ErrMalformedResponse)
	}

	expiresIn := token.ExpiresIn
	if expiresIn == 0 && !token.Expiry.IsZero() {
		expiresIn = int64(time.Until(token.Expiry).Seconds())
	}
	scope, _ := token.Extra("scope").(string)

	return &TokenResponse{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		ExpiresIn:    expiresIn,
		RefreshToken: token.RefreshToken,
		Scope:        scope,
	}, nil
}

// Refresh performs a single refresh_token grant. It has no side effects;
// persisting the result is the caller's concern.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.oauth.ClientID},
		"client_secret": {c.oauth.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading refresh response: %w", err)
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("parsing refresh response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh response missing access_token", ErrMalformedResponse)
	}
	return &token, nil
}

// CurrentUser fetches the authenticated user's profile.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*UserProfile, error) {
	var profile UserProfile
	if err := c.get(ctx, accessToken, "/me", nil, &profile); err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: user profile missing id", ErrMalformedResponse)
	}
	return &profile, nil
}

// RecentlyPlayed fetches up to limit most-recent plays. Items without a
// track id are dropped rather than surfaced as partial observations.
func (c *Client) RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]PlayObservation, error) {
	query := url.Values{"limit": {strconv.Itoa(limit)}}

	var payload recentlyPlayedResponse
	if err := c.get(ctx, accessToken, "/me/player/recently-played", query, &payload); err != nil {
		return nil, err
	}

	plays := make([]PlayObservation, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.Track.ID == "" {
			continue
		}
		obs := PlayObservation{
			TrackID:    item.Track.ID,
			Title:      item.Track.Name,
			Album:      item.Track.Album.Name,
			DurationMs: item.Track.DurationMs,
			PlayedAtMs: item.PlayedAt.UnixMilli(),
		}
		if len(item.Track.Artists) > 0 {
			obs.Artist = item.Track.Artists[0].Name
		}
		plays = append(plays, obs)
	}
	return plays, nil
}

// SearchTrack returns the provider's best match for a title and artist, or
// ErrNoMatch when the search yields nothing.
func (c *Client) SearchTrack(ctx context.Context, accessToken, artist, title string) (*TrackResult, error) {
	query := url.Values{
		"q":     {fmt.Sprintf("track:%s artist:%s", title, artist)},
		"type":  {"track"},
		"limit": {"1"},
	}

	var payload searchResponse
	if err := c.get(ctx, accessToken, "/search", query, &payload); err != nil {
		return nil, err
	}
	if len(payload.Tracks.Items) == 0 {
		return nil, ErrNoMatch
	}

	item := payload.Tracks.Items[0]
	if item.ID == "" {
		return nil, fmt.Errorf("%w: search result missing track id", ErrMalformedResponse)
	}
	result := &TrackResult{
		ID:         item.ID,
		Title:      item.Name,
		Album:      item.Album.Name,
		DurationMs: item.DurationMs,
	}
	if len(item.Artists) > 0 {
		result.Artist = item.Artists[0].Name
	}
	return result, nil
}

// get performs an authenticated GET against the REST surface.
func (c *Client) get(ctx context.Context, accessToken, path string, query url.Values, result any) error {
	reqURL := c.apiURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// post performs an authenticated JSON POST against the REST surface.
func (c *Client) post(ctx context.Context, accessToken, path string, body, result any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
