package repository

import (
	"context"
	"time"

	"github.com/bravo68web/qadeck/internal/domain/models"
)

// OAuthTokenRepository persists Basecamp OAuth tokens per user identity
type OAuthTokenRepository interface {
	// SaveTokens deactivates every active token of userID and inserts data as
	// the new active token. Both steps commit together or not at all.
	SaveTokens(ctx context.Context, userID string, data models.TokenData) (*models.OAuthToken, error)

	// GetActiveToken returns the newest active token, or a TokenNotFound error
	GetActiveToken(ctx context.Context, userID string) (*models.OAuthToken, error)

	// DeactivateTokens marks all tokens of userID inactive. Idempotent.
	DeactivateTokens(ctx context.Context, userID string) error

	// ListExpiringTokens returns active, refreshable tokens expiring at or before the given time
	ListExpiringTokens(ctx context.Context, before time.Time) ([]*models.OAuthToken, error)

	// ListHistory returns every token row of userID, newest first
	ListHistory(ctx context.Context, userID string, limit int) ([]*models.OAuthToken, error)
}
