package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/roomli/publishd/internal/log"
)

const (
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "publishd_session"

	// SessionHeaderName is the header mobile clients may use instead of
	// cookies to carry the session ID.
	SessionHeaderName = "X-Session-Id"

	// SessionIDLength is the length of the session ID in bytes.
	// 16 bytes = 128 bits of entropy.
	SessionIDLength = 16

	// SessionExpiry is how long a session cookie lasts.
	SessionExpiry = 24 * time.Hour
)

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey int

const (
	sessionIDKey contextKey = iota
)

// GenerateSessionID creates a new cryptographically secure session ID.
// Returns a hex-encoded string of random bytes.
func GenerateSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// SessionIDFromRequest retrieves the session ID from the request context.
// Returns an empty string if no session ID exists in the context.
func SessionIDFromRequest(r *http.Request) string {
	if sessionID, ok := r.Context().Value(sessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// setSessionID stores the session ID in the context.
func setSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// ValidateSessionID validates that a session ID is properly formatted:
// a hex-encoded string of SessionIDLength*2 characters.
func ValidateSessionID(sessionID string) bool {
	if len(sessionID) != SessionIDLength*2 {
		return false
	}
	_, err := hex.DecodeString(sessionID)
	return err == nil
}

// SessionMiddleware ensures every request carries a session ID.
// The ID is taken from the X-Session-Id header if present, otherwise from
// the session cookie. Requests without a valid ID get a freshly generated
// one, returned both as a cookie and in the response header so either kind
// of client can persist it. The ID is stored in the request context.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(SessionHeaderName)
		if !ValidateSessionID(sessionID) {
			sessionID = ""
			if cookie, err := r.Cookie(SessionCookieName); err == nil && ValidateSessionID(cookie.Value) {
				sessionID = cookie.Value
			}
		}

		if sessionID == "" {
			generated, err := GenerateSessionID()
			if err != nil {
				http.Error(w, "failed to create session", http.StatusInternalServerError)
				return
			}
			sessionID = generated

			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sessionID,
				Path:     "/",
				Expires:  time.Now().Add(SessionExpiry),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(SessionHeaderName, sessionID)

		ctx := setSessionID(r.Context(), sessionID)
		ctx = log.ContextWithSessionID(ctx, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
