package service

import (
	"context"

	"github.com/bravo68web/qadeck/internal/domain/models"
)

// OAuthProvider talks to the Basecamp OAuth authorization server
type OAuthProvider interface {
	// AuthorizationURL returns the URL the browser is sent to for consent
	AuthorizationURL(state string) string

	// ExchangeCode trades an authorization code for a token set
	ExchangeCode(ctx context.Context, code string) (*models.TokenData, error)

	// RefreshToken trades a refresh token for a new token set. It is never retried.
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenData, error)
}
