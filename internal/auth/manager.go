package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/parkerlane/music-tracker/internal/db"
	"github.com/parkerlane/music-tracker/internal/spotify"
)

// defaultImageSize stands in for image dimensions the provider omits.
const defaultImageSize = 300

// Provider is the slice of the streaming-provider client the manager needs.
type Provider interface {
	Exchange(ctx context.Context, code string) (*spotify.TokenResponse, error)
	CurrentUser(ctx context.Context, accessToken string) (*spotify.UserProfile, error)
	Refresh(ctx context.Context, refreshToken string) (*spotify.TokenResponse, error)
}

// Manager owns the credential side of a session: the one-time code exchange
// at login and the ensure-valid-token operation every authenticated request
// goes through.
type Manager struct {
	users    db.UserStore
	provider Provider
	logger   *log.Logger
}

// NewManager creates a Manager.
func NewManager(users db.UserStore, provider Provider, logger *log.Logger) *Manager {
	return &Manager{users: users, provider: provider, logger: logger}
}

// ExchangeCode trades an authorization code for a credential, fetches the
// provider profile, and upserts the user. For an existing user only the
// credential is overwritten.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (*db.User, error) {
	token, err := m.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	profile, err := m.provider.CurrentUser(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetching user profile: %w", err)
	}

	user := &db.User{
		ID: profile.ID,
		Credential: db.Credential{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenType:    token.TokenType,
			ExpiresIn:    token.ExpiresIn,
			IssuedAt:     time.Now(),
			Scope:        token.Scope,
		},
	}
	if profile.DisplayName != "" {
		user.DisplayName = &profile.DisplayName
	}
	if profile.Email != "" {
		user.Email = &profile.Email
	}
	if len(profile.Images) > 0 {
		img := profile.Images[0]
		image := db.ProfileImage{URL: img.URL, Width: defaultImageSize, Height: defaultImageSize}
		if img.Width != nil {
			image.Width = *img.Width
		}
		if img.Height != nil {
			image.Height = *img.Height
		}
		user.Image = &image
	}

	if err := m.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("storing user: %w", err)
	}
	return user, nil
}

// EnsureAccessToken returns a currently valid access token for the user,
// refreshing and persisting the credential when it has expired. At most one
// refresh is attempted; any failure along the way is ErrUnauthenticated.
func (m *Manager) EnsureAccessToken(ctx context.Context, userID string) (string, error) {
	user, err := m.users.Get(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return "", ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("loading user: %w", err)
	}
	if user.Credential.AccessToken == "" {
		return "", ErrUnauthenticated
	}

	if !user.Credential.Expired() {
		return user.Credential.AccessToken, nil
	}

	token, err := m.provider.Refresh(ctx, user.Credential.RefreshToken)
	if err != nil {
		m.logger.Warn("token refresh failed", "user", userID, "err", err)
		return "", ErrUnauthenticated
	}

	cred := db.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken, // empty preserves the stored one
		TokenType:    token.TokenType,
		ExpiresIn:    token.ExpiresIn,
		IssuedAt:     time.Now(),
		Scope:        token.Scope,
	}
	if cred.TokenType == "" {
		cred.TokenType = user.Credential.TokenType
	}
	if cred.ExpiresIn == 0 {
		cred.ExpiresIn = user.Credential.ExpiresIn
	}
	if cred.Scope == "" {
		cred.Scope = user.Credential.Scope
	}

	if err := m.users.UpdateCredential(ctx, userID, cred); err != nil {
		return "", fmt.Errorf("persisting refreshed credential: %w", err)
	}
	return token.AccessToken, nil
}
