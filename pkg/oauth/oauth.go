// Package oauth implements the Discord authorization-code exchange the
// callback endpoint drives: code to access token, access token to user
// identity, then the allow-list check.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/equicloud/equicloud/internal/logger"
)

// Default Discord endpoints. Overridable in Config for tests.
const (
	DefaultTokenURL = "https://discord.com/api/oauth2/token"
	DefaultUserURL  = "https://discord.com/api/users/@me"
)

// Flow errors. Their text is returned verbatim to the client in the
// callback's error field.
var (
	ErrInvalidCode  = errors.New("Invalid code")
	ErrTokenRequest = errors.New("Failed to request access token")
	ErrTokenParse   = errors.New("Failed to parse token response")
	ErrUserRequest  = errors.New("Failed to request user")
	ErrUserParse    = errors.New("Failed to parse user response")
	ErrNotAllowed   = errors.New("User is not whitelisted")
)

// Config configures the identity-provider client.
type Config struct {
	ClientID     string
	ClientSecret string

	// RedirectURI must match the one the authorization request used.
	RedirectURI string

	// AllowedUserIDs restricts authentication to listed provider user
	// ids. Empty allows any authenticated user.
	AllowedUserIDs []string

	// TokenURL and UserURL default to the Discord API endpoints.
	TokenURL string
	UserURL  string

	// HTTPClient defaults to a client with a 10 second timeout.
	HTTPClient *http.Client
}

// Client exchanges authorization codes for verified user identities.
type Client struct {
	cfg        Config
	httpClient *http.Client
	allowed    map[string]struct{}
}

// New creates an identity-provider client.
func New(cfg Config) *Client {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.UserURL == "" {
		cfg.UserURL = DefaultUserURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	var allowed map[string]struct{}
	if len(cfg.AllowedUserIDs) > 0 {
		allowed = make(map[string]struct{}, len(cfg.AllowedUserIDs))
		for _, id := range cfg.AllowedUserIDs {
			allowed[id] = struct{}{}
		}
	}

	return &Client{cfg: cfg, httpClient: httpClient, allowed: allowed}
}

// Exchange redeems an authorization code and returns the provider user
// id, after the allow-list check.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	token, err := c.exchangeCode(ctx, code)
	if err != nil {
		return "", err
	}

	userID, err := c.fetchUserID(ctx, token)
	if err != nil {
		return "", err
	}

	if c.allowed != nil {
		if _, ok := c.allowed[userID]; !ok {
			logger.Warn("Non-allowlisted user attempted authentication", "user", userID)
			return "", ErrNotAllowed
		}
	}
	return userID, nil
}

func (c *Client) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.cfg.RedirectURI},
		"scope":         {"identify"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Failed to request access token", "error", err)
		return "", ErrTokenRequest
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", ErrInvalidCode
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.AccessToken == "" {
		logger.Error("Failed to parse token response", "error", err)
		return "", ErrTokenParse
	}
	return result.AccessToken, nil
}

func (c *Client) fetchUserID(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUserRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Failed to request user", "error", err)
		return "", ErrUserRequest
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", ErrUserRequest
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.ID == "" {
		logger.Error("Failed to parse user response", "error", err)
		return "", ErrUserParse
	}
	return result.ID, nil
}
