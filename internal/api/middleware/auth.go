// Package middleware provides the HTTP middleware for the public API:
// bearer-token authentication and per-client rate limiting.
package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/hashing"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserID returns the authenticated user id stored by BearerAuth, or ""
// when the request was not authenticated.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserID returns a context carrying an authenticated user id. It is
// what BearerAuth installs, exported so handler tests can simulate an
// authenticated request without a token.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// BearerAuth authenticates requests with a token of the form
// base64(secret:userID). The secret is recomputed from the user id
// claimed by the token itself and compared in constant time; the legacy
// derivation is accepted with a warning so pre-rotation clients keep
// working until they re-authenticate.
func BearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			logger.Debug("Missing authorization header", "path", r.URL.Path)
			unauthorized(w)
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")

		userID, ok := verifyToken(token)
		if !ok {
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// verifyToken decodes and checks one bearer token, returning the
// authenticated user id.
func verifyToken(token string) (string, bool) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		logger.Debug("Invalid base64 token", "error", err)
		return "", false
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		logger.Debug("Invalid token format, expected secret:userId")
		return "", false
	}
	provided, userID := parts[0], parts[1]

	if constantTimeEqual(provided, hashing.UserSecret(userID)) {
		return userID, true
	}

	if constantTimeEqual(provided, hashing.LegacyUserSecret(userID)) {
		logger.Warn("User authenticated with legacy secret, re-authentication will rotate it",
			"user", userID)
		return userID, true
	}

	logger.Debug("Invalid secret for user", "user", userID)
	return "", false
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
}
