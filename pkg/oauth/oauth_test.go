package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider stands in for the Discord API: a token endpoint and a
// user endpoint sharing one access token.
func fakeProvider(t *testing.T, accessToken, userID string, rejectCode bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		if rejectCode {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + accessToken + `"}`))
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+accessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"` + userID + `"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func clientFor(server *httptest.Server, allowed []string) *Client {
	return New(Config{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		RedirectURI:    "https://cloud.example.com/v1/oauth/callback",
		AllowedUserIDs: allowed,
		TokenURL:       server.URL + "/oauth2/token",
		UserURL:        server.URL + "/users/@me",
	})
}

func TestExchangeSuccess(t *testing.T) {
	server := fakeProvider(t, "tok-1", "12345", false)

	userID, err := clientFor(server, nil).Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "12345", userID)
}

func TestExchangeInvalidCode(t *testing.T) {
	server := fakeProvider(t, "tok-1", "12345", true)

	_, err := clientFor(server, nil).Exchange(context.Background(), "bad-code")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestExchangeAllowList(t *testing.T) {
	server := fakeProvider(t, "tok-1", "12345", false)

	_, err := clientFor(server, []string{"99999"}).Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrNotAllowed)

	userID, err := clientFor(server, []string{"99999", "12345"}).Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "12345", userID)
}

func TestExchangeUserRequestFailure(t *testing.T) {
	server := fakeProvider(t, "tok-1", "12345", false)

	// Point the user endpoint at a closed server so the identity fetch
	// fails after a successful token exchange.
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	c := New(Config{
		TokenURL: server.URL + "/oauth2/token",
		UserURL:  dead.URL,
	})
	_, err := c.Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrUserRequest)
}
