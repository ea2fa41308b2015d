package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/parkerlane/music-tracker/internal/auth"
	"github.com/parkerlane/music-tracker/internal/db"
	"github.com/parkerlane/music-tracker/internal/history"
	"github.com/parkerlane/music-tracker/internal/lastfm"
	"github.com/parkerlane/music-tracker/internal/similar"
	"github.com/parkerlane/music-tracker/internal/spotify"
)

// defaultLimit applies when a read endpoint gets no limit parameter.
const defaultLimit = 10

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	auth        *auth.Manager
	issuer      *auth.SessionIssuer
	users       db.UserStore
	spotify     *spotify.Client
	history     *history.Service
	similar     *similar.Service
	logger      *log.Logger
	frontendURL string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authManager *auth.Manager, issuer *auth.SessionIssuer, users db.UserStore, spotifyClient *spotify.Client, historyService *history.Service, similarService *similar.Service, logger *log.Logger, frontendURL string) *Handlers {
	return &Handlers{
		auth:        authManager,
		issuer:      issuer,
		users:       users,
		spotify:     spotifyClient,
		history:     historyService,
		similar:     similarService,
		logger:      logger,
		frontendURL: frontendURL,
	}
}

// Login starts the OAuth flow (GET /login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	// State for CSRF protection, validated on the callback
	state, err := generateOAuthState()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes
	})

	http.Redirect(w, r, h.spotify.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback completes the OAuth flow (GET /callback): it exchanges the code,
// stores the user with the delegated credential, sets the session cookie and
// sends the browser back to the frontend.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing state cookie")
		return
	}

	if state := r.URL.Query().Get("state"); state != stateCookie.Value {
		respondError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("authorization refused: %s", errMsg))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "missing code")
		return
	}

	user, err := h.auth.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("code exchange failed", "err", err)
		respondError(w, http.StatusBadGateway, "login failed")
		return
	}

	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		h.logger.Error("issuing session failed", "err", err)
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	setSessionCookie(w, token, h.issuer.TTL())
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

// AuthStatus reports whether the caller holds a usable session
// (GET /auth-status). It answers 200 in every case so the frontend can poll
// it without tripping error handling.
func (h *Handlers) AuthStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := sessionUserID(r, h.issuer)
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]bool{"loggedIn": false})
		return
	}

	// A session is only as good as the credential behind it; this also
	// refreshes an expired access token transparently.
	if _, err := h.auth.EnsureAccessToken(r.Context(), userID); err != nil {
		respondJSON(w, http.StatusOK, map[string]bool{"loggedIn": false})
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"loggedIn": true})
}

// Logout clears the session cookie (POST /logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// UserInfo returns the stored profile of the authenticated user
// (GET /user-info).
func (h *Handlers) UserInfo(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), userIDFromContext(r.Context()))
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, userInfoResponse{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Image:       user.Image,
	})
}

// Recent reconciles and returns the user's most recent plays (GET /recent).
func (h *Handlers) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	plays, err := h.history.ReconcileRecent(r.Context(), userIDFromContext(r.Context()), limit)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toPlayResponses(plays))
}

// ListeningHistory pages through the stored ledger newest-first
// (GET /get-listening-history).
func (h *Handlers) ListeningHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var before *int64
	if raw := r.URL.Query().Get("startAfter"); raw != "" {
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid startAfter parameter")
			return
		}
		before = &cursor
	}

	plays, err := h.history.List(r.Context(), userIDFromContext(r.Context()), limit, before)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toPlayResponses(plays))
}

// Similar returns recommendations for a seed track (GET /get-similar). The
// seed is either an mbid or an artist plus track pair.
func (h *Handlers) Similar(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := lastfm.SimilarParams{
		MBID:   r.URL.Query().Get("mbid"),
		Artist: r.URL.Query().Get("artist"),
		Title:  r.URL.Query().Get("track"),
		Limit:  limit,
	}
	if params.MBID == "" && (params.Artist == "" || params.Title == "") {
		respondError(w, http.StatusBadRequest, "either mbid or artist and track are required")
		return
	}

	recommendations, err := h.similar.Similar(r.Context(), userIDFromContext(r.Context()), params)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, recommendations)
}

// GeneratePlaylist creates a playlist from the given track ids
// (POST /generate-spotify-playlist). Ids are passed through as sent;
// duplicates become duplicate playlist entries.
func (h *Handlers) GeneratePlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.TrackIDs) == 0 {
		respondError(w, http.StatusBadRequest, "track_ids must not be empty")
		return
	}

	userID := userIDFromContext(r.Context())
	accessToken, err := h.auth.EnsureAccessToken(r.Context(), userID)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	playlistID, err := h.spotify.CreatePlaylist(r.Context(), accessToken, userID, req.Name, req.Description, req.IsPublic)
	if err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	if err := h.spotify.AddTracksToPlaylist(r.Context(), accessToken, playlistID, req.TrackIDs); err != nil {
		h.respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"playlistId": playlistID})
}

// respondUpstreamError maps service errors to HTTP status codes.
func (h *Handlers) respondUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *spotify.APIError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "not authenticated")
	case errors.As(err, &apiErr):
		h.logger.Warn("streaming provider error", "status", apiErr.StatusCode, "err", err)
		respondError(w, http.StatusBadGateway, "streaming provider error")
	case errors.Is(err, lastfm.ErrInvalidAPIKey), errors.Is(err, lastfm.ErrRateLimited):
		h.logger.Warn("metadata provider error", "err", err)
		respondError(w, http.StatusBadGateway, "metadata provider error")
	default:
		h.logger.Error("request failed", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

type userInfoResponse struct {
	ID          string           `json:"id"`
	DisplayName *string          `json:"displayName"`
	Email       *string          `json:"email"`
	Image       *db.ProfileImage `json:"image"`
}

type playlistRequest struct {
	TrackIDs    []string `json:"track_ids"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	IsPublic    bool     `json:"is_public"`
}

type trackResponse struct {
	SpotifyID string       `json:"spotifyId"`
	MBID      string       `json:"mbid"`
	Title     string       `json:"title"`
	Artist    db.ArtistRef `json:"artist"`
	Album     db.AlbumRef  `json:"album"`
	Duration  int          `json:"duration"`
	Genres    []string     `json:"genres"`
}

type playResponse struct {
	Track     trackResponse `json:"track"`
	Timestamp int64         `json:"timestamp"`
}

func toPlayResponses(plays []db.PlayedTrack) []playResponse {
	responses := make([]playResponse, 0, len(plays))
	for _, play := range plays {
		genres := play.Track.Genres
		if genres == nil {
			genres = []string{}
		}
		responses = append(responses, playResponse{
			Track: trackResponse{
				SpotifyID: play.Track.SpotifyID,
				MBID:      play.Track.MBID,
				Title:     play.Track.Title,
				Artist:    play.Track.Artist,
				Album:     play.Track.Album,
				Duration:  play.Track.DurationMs,
				Genres:    genres,
			},
			Timestamp: play.PlayedAtMs,
		})
	}
	return responses
}

func limitParam(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit parameter %q", raw)
	}
	return limit, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// generateOAuthState returns a random hex state value.
func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
