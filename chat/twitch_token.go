package chat

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/twitch"
)

// TwitchTokenConfig holds the credentials for the IRC user token.
type TwitchTokenConfig struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	// TokenURL overrides the Twitch token endpoint.
	TokenURL string
}

// Refreshable reports whether a refresh grant can be made.
func (c TwitchTokenConfig) Refreshable() bool {
	return c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != ""
}

// NewTwitchTokenSource returns a refreshing token source when the refresh
// credentials are complete and a static one otherwise. The "oauth:" IRC
// prefix is accepted on the static token and stripped.
func NewTwitchTokenSource(ctx context.Context, c TwitchTokenConfig) (oauth2.TokenSource, error) {
	static := strings.TrimPrefix(strings.TrimSpace(c.AccessToken), "oauth:")
	if !c.Refreshable() {
		if static == "" {
			return nil, errors.New("twitch token: no access token and no refresh credentials")
		}
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: static, TokenType: "bearer"}), nil
	}

	endpoint := twitch.Endpoint
	if c.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: c.TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	cfg := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{"chat:read", "chat:edit"},
	}
	// No access token or expiry: the first Token call performs a refresh grant.
	seed := &oauth2.Token{RefreshToken: c.RefreshToken}
	return cfg.TokenSource(ctx, seed), nil
}
