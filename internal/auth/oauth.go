package auth

import (
	"golang.org/x/oauth2"
)

const (
	// Strava OAuth endpoints
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"
)

// Scopes needed to read every activity and its streams (Strava expects one
// comma-separated scope string).
var Scopes = []string{
	"read,activity:read_all",
}

// Config holds the OAuth client credentials
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "http://localhost:8089/callback"
	AuthURL      string // overrides AuthURL when set
	TokenURL     string // overrides TokenURL when set
}

// NewOAuthConfig creates an oauth2.Config from our Config
func NewOAuthConfig(cfg Config) *oauth2.Config {
	endpoint := oauth2.Endpoint{AuthURL: AuthURL, TokenURL: TokenURL}
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       Scopes,
	}
}

// AuthResult contains the token and athlete info from successful auth
type AuthResult struct {
	Token     *oauth2.Token
	AthleteID int64
}

// ExtractAthleteID reads the athlete ID Strava embeds in the token response.
func ExtractAthleteID(token *oauth2.Token) int64 {
	athlete, ok := token.Extra("athlete").(map[string]any)
	if !ok {
		return 0
	}
	if id, ok := athlete["id"].(float64); ok {
		return int64(id)
	}
	return 0
}
