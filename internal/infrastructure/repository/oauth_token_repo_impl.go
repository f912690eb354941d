package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bravo68web/qadeck/internal/domain/models"
	"github.com/bravo68web/qadeck/internal/domain/repository"
	apperror "github.com/bravo68web/qadeck/pkg/errors"
)

// OAuthTokenRepoImpl implements the OAuthTokenRepository interface using GORM
type OAuthTokenRepoImpl struct {
	db *gorm.DB
}

// NewOAuthTokenRepository creates a new OAuthTokenRepoImpl instance
func NewOAuthTokenRepository(db *gorm.DB) repository.OAuthTokenRepository {
	return &OAuthTokenRepoImpl{db: db}
}

// SaveTokens rotates the user's active token inside one transaction
func (r *OAuthTokenRepoImpl) SaveTokens(ctx context.Context, userID string, data models.TokenData) (*models.OAuthToken, error) {
	token := &models.OAuthToken{
		UserID:       userID,
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresAt:    data.ExpiresAt,
		TokenType:    data.TokenType,
		Scope:        data.Scope,
		IsActive:     true,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deactivate(tx, userID); err != nil {
			return err
		}
		return tx.Create(token).Error
	})
	if err != nil {
		return nil, apperror.DatabaseError("save basecamp tokens", err)
	}
	return token, nil
}

// GetActiveToken retrieves the newest active token for a user
func (r *OAuthTokenRepoImpl) GetActiveToken(ctx context.Context, userID string) (*models.OAuthToken, error) {
	var token models.OAuthToken
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.TokenNotFound(userID)
		}
		return nil, apperror.DatabaseError("find active basecamp token", err)
	}
	return &token, nil
}

// DeactivateTokens marks every token of a user inactive
func (r *OAuthTokenRepoImpl) DeactivateTokens(ctx context.Context, userID string) error {
	if err := deactivate(r.db.WithContext(ctx), userID); err != nil {
		return apperror.DatabaseError("deactivate basecamp tokens", err)
	}
	return nil
}

// ListExpiringTokens finds active tokens with a refresh token that expire at or before the cutoff
func (r *OAuthTokenRepoImpl) ListExpiringTokens(ctx context.Context, before time.Time) ([]*models.OAuthToken, error) {
	var tokens []*models.OAuthToken
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("refresh_token IS NOT NULL AND refresh_token <> ''").
		Where("expires_at IS NOT NULL AND expires_at <= ?", before).
		Order("expires_at ASC").
		Find(&tokens).Error
	if err != nil {
		return nil, apperror.DatabaseError("list expiring basecamp tokens", err)
	}
	return tokens, nil
}

// ListHistory returns all token rows for a user, newest first
func (r *OAuthTokenRepoImpl) ListHistory(ctx context.Context, userID string, limit int) ([]*models.OAuthToken, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var tokens []*models.OAuthToken
	if err := query.Find(&tokens).Error; err != nil {
		return nil, apperror.DatabaseError("list basecamp token history", err)
	}
	return tokens, nil
}

func deactivate(db *gorm.DB, userID string) error {
	return db.Model(&models.OAuthToken{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()}).Error
}

// Verify interface compliance at compile time
var _ repository.OAuthTokenRepository = (*OAuthTokenRepoImpl)(nil)
