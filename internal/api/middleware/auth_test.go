package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equicloud/equicloud/pkg/hashing"
)

func authedEcho(t *testing.T) (http.Handler, *string) {
	t.Helper()
	var gotUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return BearerAuth(inner), &gotUser
}

func token(secret, userID string) string {
	return base64.StdEncoding.EncodeToString([]byte(secret + ":" + userID))
}

func TestBearerAuthCurrentSecret(t *testing.T) {
	handler, gotUser := authedEcho(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token(hashing.UserSecret("12345"), "12345"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", *gotUser)
}

func TestBearerAuthWithoutPrefix(t *testing.T) {
	handler, gotUser := authedEcho(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	req.Header.Set("Authorization", token(hashing.UserSecret("12345"), "12345"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", *gotUser)
}

func TestBearerAuthLegacySecretAccepted(t *testing.T) {
	handler, gotUser := authedEcho(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token(hashing.LegacyUserSecret("12345"), "12345"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", *gotUser)
}

func TestBearerAuthRejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not base64", "Bearer %%%"},
		{"no colon", base64.StdEncoding.EncodeToString([]byte("justonepart"))},
		{"empty secret", token("", "12345")},
		{"wrong secret", token("0123456789abcdef", "12345")},
		{"secret for other user", token(hashing.UserSecret("99999"), "12345")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := authedEcho(t)

			req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
		})
	}
}

func TestUserIDSplitsOnFirstColon(t *testing.T) {
	// A user id containing a colon must survive: the token splits on
	// the first separator only.
	handler, gotUser := authedEcho(t)
	userID := "tenant:42"

	req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token(hashing.UserSecret(userID), userID))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, *gotUser)
}
