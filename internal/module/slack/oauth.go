package slack

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/ragpdf/server/internal/shared/config"
)

// Slack OAuth v2 endpoints.
var slackEndpoint = oauth2.Endpoint{
	AuthURL:  "https://slack.com/oauth/v2/authorize",
	TokenURL: "https://slack.com/api/oauth.v2.access",
}

// InstallResult is the outcome of a completed OAuth exchange.
type InstallResult struct {
	AccessToken string
	TeamID      string
	TeamName    string
	Scopes      []string
}

// OAuthProvider implements the Slack app install flow.
type OAuthProvider struct {
	config *oauth2.Config
}

// NewOAuthProvider creates a Slack OAuth provider.
func NewOAuthProvider(cfg config.SlackConfig) *OAuthProvider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"chat:write", "channels:read"}
	}

	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     slackEndpoint,
		},
	}
}

// AuthorizeURL returns the Slack authorization URL for a state token.
func (p *OAuthProvider) AuthorizeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a workspace token. Slack
// returns the team and granted scopes alongside the token.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*InstallResult, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	result := &InstallResult{AccessToken: token.AccessToken}

	if team, ok := token.Extra("team").(map[string]any); ok {
		if id, ok := team["id"].(string); ok {
			result.TeamID = id
		}
		if name, ok := team["name"].(string); ok {
			result.TeamName = name
		}
	}
	if result.TeamID == "" {
		return nil, ErrMissingTeamID
	}

	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		result.Scopes = strings.Split(scope, ",")
	}
	return result, nil
}
