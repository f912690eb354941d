package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravo68web/qadeck/internal/domain/models"
	"github.com/bravo68web/qadeck/internal/infrastructure/cache"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
)

func newAuthHarness(t *testing.T) (*BasecampAuthService, *tokenHarness) {
	t.Helper()
	th := newTokenHarness(t)
	th.provider.issued = models.TokenData{
		AccessToken:  "granted",
		RefreshToken: strPtr("granted-rt"),
		ExpiresAt:    timePtr(fixedNow.Add(14 * 24 * time.Hour)),
		TokenType:    "Bearer",
	}
	return NewBasecampAuthService(th.provider, th.repo, th.svc, cache.NewMemoryCache(10)), th
}

func TestAuthorizationFlow_ConnectsUser(t *testing.T) {
	svc, th := newAuthHarness(t)
	ctx := context.Background()

	state, url, err := svc.BeginAuthorization(ctx, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.True(t, strings.HasSuffix(url, "state="+state))

	userID, token, err := svc.CompleteAuthorization(ctx, state, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "granted", token.AccessToken)

	status, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.False(t, status.Expired)
	assert.True(t, status.HasRefreshToken)

	_, _, err = svc.CompleteAuthorization(ctx, state, "code-1")
	assert.True(t, apperrors.IsUnauthorized(err), "state is single use")
	assert.Equal(t, int32(1), th.provider.exchangeCalls)
}

func TestAuthorizationFlow_ReauthorizationRotates(t *testing.T) {
	svc, th := newAuthHarness(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		state, _, err := svc.BeginAuthorization(ctx, "u1")
		require.NoError(t, err)
		_, _, err = svc.CompleteAuthorization(ctx, state, "code")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, th.repo.activeCount("u1"))
}

func TestCompleteAuthorization_UnknownState(t *testing.T) {
	svc, th := newAuthHarness(t)

	_, _, err := svc.CompleteAuthorization(context.Background(), "forged", "code")
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Zero(t, th.provider.exchangeCalls)

	_, _, err = svc.CompleteAuthorization(context.Background(), "", "code")
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestCompleteAuthorization_ExchangeFailure(t *testing.T) {
	svc, th := newAuthHarness(t)
	th.provider.exchangeErr = apperrors.RemoteAPI("exchange code", http.StatusBadRequest, "", "invalid code")
	ctx := context.Background()

	state, _, err := svc.BeginAuthorization(ctx, "u1")
	require.NoError(t, err)

	userID, _, err := svc.CompleteAuthorization(ctx, state, "bad")
	require.Error(t, err)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	status, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, status.Connected)
}

func TestDisconnect(t *testing.T) {
	svc, th := newAuthHarness(t)
	ctx := context.Background()
	th.seed(t, "u1", "a", nil, nil)

	require.NoError(t, svc.Disconnect(ctx, "u1"))
	require.NoError(t, svc.Disconnect(ctx, "u1"))

	status, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, status.Connected)
}

func TestBeginAuthorization_RequiresUser(t *testing.T) {
	svc, _ := newAuthHarness(t)
	_, _, err := svc.BeginAuthorization(context.Background(), "")
	assert.True(t, apperrors.IsUnauthorized(err))
}
