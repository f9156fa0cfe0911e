package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"paceload/internal/store"
)

// refreshMargin is how long before expiry a token is refreshed.
const refreshMargin = 60 * time.Second

// TokenSource serves the stored Strava token, refreshing it shortly before
// expiry and writing the refreshed token back to the database.
type TokenSource struct {
	config *oauth2.Config
	db     *store.DB
	logger *slog.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewTokenSource loads the stored token. It returns store.ErrNoAuth when the
// user has not logged in yet.
func NewTokenSource(ctx context.Context, cfg *oauth2.Config, db *store.DB, logger *slog.Logger) (*TokenSource, error) {
	a, err := db.GetAuth(ctx)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenSource{
		config: cfg,
		db:     db,
		logger: logger,
		token: &oauth2.Token{
			AccessToken:  a.AccessToken,
			RefreshToken: a.RefreshToken,
			Expiry:       a.ExpiresAt,
			TokenType:    "Bearer",
		},
	}, nil
}

// Token returns a valid token, refreshing if necessary
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if time.Until(ts.token.Expiry) > refreshMargin {
		return ts.token, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Clearing the access token forces the oauth2 package to refresh.
	stale := *ts.token
	stale.AccessToken = ""
	fresh, err := ts.config.TokenSource(ctx, &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing strava token: %w", err)
	}

	if err := ts.db.UpdateTokens(ctx, fresh.AccessToken, fresh.RefreshToken, fresh.Expiry); err != nil {
		return nil, fmt.Errorf("persisting refreshed token: %w", err)
	}
	ts.logger.Info("strava token refreshed", "expires_at", fresh.Expiry)

	ts.token = fresh
	return fresh, nil
}

// Save stores the result of a successful login.
func Save(ctx context.Context, db *store.DB, res *AuthResult) error {
	return db.SaveAuth(ctx, &store.Auth{
		AthleteID:    res.AthleteID,
		AccessToken:  res.Token.AccessToken,
		RefreshToken: res.Token.RefreshToken,
		ExpiresAt:    res.Token.Expiry,
	})
}
