package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravo68web/qadeck/internal/domain/models"
	apperror "github.com/bravo68web/qadeck/pkg/errors"
)

func countActive(t *testing.T, repo *OAuthTokenRepoImpl, userID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, repo.db.Model(&models.OAuthToken{}).
		Where("user_id = ? AND is_active = ?", userID, true).Count(&n).Error)
	return n
}

func TestSaveTokens_RotatesActiveToken(t *testing.T) {
	repo := NewOAuthTokenRepository(newTestDB(t)).(*OAuthTokenRepoImpl)
	ctx := context.Background()

	first, err := repo.SaveTokens(ctx, "u1", models.TokenData{AccessToken: "a1", RefreshToken: strPtr("r1")})
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.Equal(t, "Bearer", first.TokenType)

	second, err := repo.SaveTokens(ctx, "u1", models.TokenData{AccessToken: "a2", RefreshToken: strPtr("r2"), TokenType: "Bearer"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), countActive(t, repo, "u1"))

	active, err := repo.GetActiveToken(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, "a2", active.AccessToken)

	history, err := repo.ListHistory(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, tok := range history {
		if tok.ID == first.ID {
			assert.False(t, tok.IsActive, "old token is kept but inactive")
		}
	}
}

func TestSaveTokens_ConcurrentSavesLeaveOneActive(t *testing.T) {
	repo := NewOAuthTokenRepository(newTestDB(t)).(*OAuthTokenRepoImpl)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.SaveTokens(ctx, "u1", models.TokenData{AccessToken: "a"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), countActive(t, repo, "u1"))
}

func TestSaveTokens_IsolatedPerUser(t *testing.T) {
	repo := NewOAuthTokenRepository(newTestDB(t)).(*OAuthTokenRepoImpl)
	ctx := context.Background()

	_, err := repo.SaveTokens(ctx, "u1", models.TokenData{AccessToken: "a1"})
	require.NoError(t, err)
	_, err = repo.SaveTokens(ctx, "u2", models.TokenData{AccessToken: "b1"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), countActive(t, repo, "u1"))
	assert.Equal(t, int64(1), countActive(t, repo, "u2"))
}

func TestGetActiveToken_NotFound(t *testing.T) {
	repo := NewOAuthTokenRepository(newTestDB(t))

	_, err := repo.GetActiveToken(context.Background(), "nobody")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrTokenNotFound)
	assert.NotErrorIs(t, err, apperror.ErrDatabaseError)
}

func TestDeactivateTokens_Idempotent(t *testing.T) {
	repo := NewOAuthTokenRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.SaveTokens(ctx, "u1", models.TokenData{AccessToken: "a1"})
	require.NoError(t, err)

	require.NoError(t, repo.DeactivateTokens(ctx, "u1"))
	require.NoError(t, repo.DeactivateTokens(ctx, "u1"))
	require.NoError(t, repo.DeactivateTokens(ctx, "never-connected"))

	_, err = repo.GetActiveToken(ctx, "u1")
	assert.ErrorIs(t, err, apperror.ErrTokenNotFound)
}

func TestListExpiringTokens(t *testing.T) {
	repo := NewOAuthTokenRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	soon := now.Add(2 * time.Minute)
	later := now.Add(2 * time.Hour)

	_, err := repo.SaveTokens(ctx, "soon", models.TokenData{AccessToken: "a", RefreshToken: strPtr("r"), ExpiresAt: &soon})
	require.NoError(t, err)
	_, err = repo.SaveTokens(ctx, "later", models.TokenData{AccessToken: "a", RefreshToken: strPtr("r"), ExpiresAt: &later})
	require.NoError(t, err)
	_, err = repo.SaveTokens(ctx, "no-refresh", models.TokenData{AccessToken: "a", ExpiresAt: &soon})
	require.NoError(t, err)
	_, err = repo.SaveTokens(ctx, "no-expiry", models.TokenData{AccessToken: "a", RefreshToken: strPtr("r")})
	require.NoError(t, err)

	tokens, err := repo.ListExpiringTokens(ctx, now.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "soon", tokens[0].UserID)
}

func TestSaveTokens_StorageFailureIsStorageError(t *testing.T) {
	db := newTestDB(t)
	repo := NewOAuthTokenRepository(db)
	require.NoError(t, db.Migrator().DropTable(&models.OAuthToken{}))

	_, err := repo.SaveTokens(context.Background(), "u1", models.TokenData{AccessToken: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrDatabaseError)
}
