// Package twitchapi resolves Twitch logins to user ids through the Helix API,
// authenticated with an app access token from the client credentials grant.
// Admin management accepts a login wherever a Twitch user id is expected.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/twitch"
)

const defaultHelixURL = "https://api.twitch.tv/helix"

// ErrUserNotFound is returned when no account has the login.
var ErrUserNotFound = errors.New("twitch user not found")

// Config holds the app credentials. TokenURL and HelixURL override the
// Twitch endpoints (tests).
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	HelixURL     string
}

// HelixClient calls Helix with a cached, self-renewing app token.
type HelixClient struct {
	clientID string
	baseURL  string
	http     *http.Client
}

// NewHelixClient builds a client. No request is made until the first lookup.
func NewHelixClient(ctx context.Context, c Config) (*HelixClient, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, errors.New("missing client id/secret for twitch app token")
	}
	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = twitch.Endpoint.TokenURL
	}
	base := strings.TrimRight(c.HelixURL, "/")
	if base == "" {
		base = defaultHelixURL
	}
	cc := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return &HelixClient{clientID: c.ClientID, baseURL: base, http: cc.Client(ctx)}, nil
}

// GetUserID resolves a login name (case-insensitive, optional leading @) to
// its user id.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	login = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(login), "@"))
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.baseURL+"/users?"+url.Values{"login": {login}}.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Client-Id", hc.clientID)
	resp, err := hc.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("helix users: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return "", fmt.Errorf("helix users: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode helix users: %w", err)
	}
	if len(body.Data) == 0 || body.Data[0].ID == "" {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, login)
	}
	return body.Data[0].ID, nil
}
