package web

import (
	"context"
	"net/http"
	"time"

	"github.com/parkerlane/music-tracker/internal/auth"
)

// sessionCookieName is the cookie carrying the signed session token.
const sessionCookieName = "jwt"

type contextKey string

const userIDKey contextKey = "userID"

// setSessionCookie writes the session token to the browser. The cookie is
// never readable from scripts and only travels on same-site requests.
func setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// clearSessionCookie expires the session cookie. The delegated credential
// stays in the store untouched.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

// sessionUserID extracts and verifies the session cookie, returning the
// subject user id. Any missing or invalid cookie is ErrUnauthenticated.
func sessionUserID(r *http.Request, issuer *auth.SessionIssuer) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", auth.ErrUnauthenticated
	}
	return issuer.Verify(cookie.Value)
}

// requireSession rejects requests without a valid session cookie and puts
// the authenticated user id on the request context.
func requireSession(issuer *auth.SessionIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := sessionUserID(r, issuer)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userIDFromContext returns the user id placed there by requireSession.
func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
