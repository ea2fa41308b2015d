// Package auth maintains user sessions and keeps delegated access
// credentials valid: it exchanges OAuth authorization codes, issues and
// verifies signed session tokens, and refreshes expired access tokens on
// demand.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthenticated covers every way a request can fail to resolve to a
// usable identity: missing, invalid or expired session token, no stored
// credential, or a failed refresh.
var ErrUnauthenticated = errors.New("unauthenticated")

// SessionIssuer issues and verifies signed, time-boxed session tokens bound
// to a user id. Expiry is purely time-based; there is no revocation list.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionIssuer creates an issuer signing with the given secret. Tokens
// expire after ttl.
func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured session lifetime.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed session token for the user. Each token carries a
// unique jti so two tokens for the same user are never byte-identical.
func (s *SessionIssuer) Issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Verify validates signature and expiry and extracts the bound user id.
// Every failure mode resolves to ErrUnauthenticated.
func (s *SessionIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrUnauthenticated
	}
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}
