package handlers

import (
	"net/http"

	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/hashing"
	"github.com/equicloud/equicloud/pkg/oauth"
)

// OAuthHandler serves the identity-provider integration: the client
// settings needed to start the flow, and the callback that redeems the
// authorization code for a bearer secret.
type OAuthHandler struct {
	client      *oauth.Client
	clientID    string
	redirectURI string
}

func NewOAuthHandler(client *oauth.Client, clientID, redirectURI string) *OAuthHandler {
	return &OAuthHandler{client: client, clientID: clientID, redirectURI: redirectURI}
}

// Settings returns the parameters a client needs to start the
// authorization flow.
func (h *OAuthHandler) Settings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"clientId":    h.clientID,
		"redirectUri": h.redirectURI,
	})
}

// Callback redeems the authorization code. Flow failures are reported
// with a 200 and an error field; the browser-facing client renders
// them.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if provErr := query.Get("error"); provErr != "" {
		writeJSON(w, http.StatusOK, map[string]string{"error": provErr})
		return
	}

	code := query.Get("code")
	if code == "" {
		writeJSON(w, http.StatusOK, map[string]string{"error": "Missing code"})
		return
	}

	userID, err := h.client.Exchange(r.Context(), code)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}

	logger.Info("User authenticated successfully", "user", userID)
	writeJSON(w, http.StatusOK, map[string]string{"secret": hashing.UserSecret(userID)})
}
