package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bravo68web/qadeck/internal/domain/models"
	"github.com/bravo68web/qadeck/internal/domain/repository"
	domainservice "github.com/bravo68web/qadeck/internal/domain/service"
	"github.com/bravo68web/qadeck/internal/observability"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
	"github.com/bravo68web/qadeck/pkg/logger"
)

const (
	refreshTriggerRequest = "request"
	refreshTriggerCron    = "cron"
	refreshTriggerManual  = "manual"
)

var errIssuedExpired = errors.New("provider issued a token that is already expired")

// TokenService decides whether a stored Basecamp token is usable and renews it
// through the OAuth provider when it is not.
type TokenService struct {
	tokenRepo repository.OAuthTokenRepository
	provider  domainservice.OAuthProvider
	locker    domainservice.Locker
	lockTTL   time.Duration
	group     singleflight.Group
	now       func() time.Time
	log       *logger.Logger
}

var _ domainservice.TokenSource = (*TokenService)(nil)

// TokenServiceOption customizes a TokenService
type TokenServiceOption func(*TokenService)

// WithClock replaces time.Now for expiry decisions
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) { s.now = now }
}

// WithRefreshLocker guards refreshes with a lock shared by every instance
func WithRefreshLocker(locker domainservice.Locker, ttl time.Duration) TokenServiceOption {
	return func(s *TokenService) {
		s.locker = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(
	tokenRepo repository.OAuthTokenRepository,
	provider domainservice.OAuthProvider,
	opts ...TokenServiceOption,
) *TokenService {
	s := &TokenService{
		tokenRepo: tokenRepo,
		provider:  provider,
		lockTTL:   30 * time.Second,
		now:       time.Now,
		log:       logger.Get().WithFields(logger.Component("token-service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsExpired reports whether token is unusable at the current time. A token
// without an expiry never expires; one expiring exactly now is expired.
func (s *TokenService) IsExpired(token *models.OAuthToken) bool {
	if token == nil || token.ExpiresAt == nil {
		return false
	}
	return !s.now().Before(*token.ExpiresAt)
}

// Refresh exchanges refreshToken with the provider and rotates the stored
// token. Provider rejections come back as RefreshFailed with the provider's
// status and body intact; transport failures are returned unchanged.
func (s *TokenService) Refresh(ctx context.Context, userID, refreshToken string) (*models.OAuthToken, error) {
	data, err := s.provider.RefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrTransport) {
			return nil, err
		}
		return nil, apperrors.RefreshFailed(err)
	}

	// Launchpad may omit the refresh token on renewal; the old one stays valid.
	if data.RefreshToken == nil || *data.RefreshToken == "" {
		rt := refreshToken
		data.RefreshToken = &rt
	}

	return s.tokenRepo.SaveTokens(ctx, userID, *data)
}

// GetValidAccessToken returns a bare access token for userID that is not
// expired at return time, refreshing it first when needed.
func (s *TokenService) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	token, err := s.tokenRepo.GetActiveToken(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenNotFound) {
			s.log.WithContext(ctx).Debug("No Basecamp token for user", logger.UserID(userID))
		}
		return "", err
	}

	if !s.IsExpired(token) {
		return token.AccessToken, nil
	}
	if !token.HasRefreshToken() {
		return "", apperrors.ExpiredNoRefresh(userID)
	}

	res, err := s.refreshCoalesced(ctx, userID, refreshTriggerRequest, time.Time{})
	if err != nil {
		return "", err
	}
	if s.IsExpired(res.token) {
		return "", apperrors.RefreshFailed(errIssuedExpired)
	}
	return res.token.AccessToken, nil
}

// RefreshIfExpiring renews userID's token when it expires at or before
// deadline. A token another instance already rotated past the deadline is
// returned untouched with refreshed set to false.
func (s *TokenService) RefreshIfExpiring(ctx context.Context, userID string, deadline time.Time) (token *models.OAuthToken, refreshed bool, err error) {
	res, err := s.refreshCoalesced(ctx, userID, refreshTriggerCron, deadline)
	if err != nil {
		return nil, false, err
	}
	return res.token, res.refreshed, nil
}

// ForceRefresh renews userID's token regardless of its expiry. Used by the CLI.
func (s *TokenService) ForceRefresh(ctx context.Context, userID string) (*models.OAuthToken, error) {
	res, err := s.refreshCoalesced(ctx, userID, refreshTriggerManual, time.Time{})
	if err != nil {
		return nil, err
	}
	return res.token, nil
}

// Status returns the active token of userID
func (s *TokenService) Status(ctx context.Context, userID string) (*models.OAuthToken, error) {
	return s.tokenRepo.GetActiveToken(ctx, userID)
}

// Revoke deactivates every token of userID. Idempotent.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	if err := s.tokenRepo.DeactivateTokens(ctx, userID); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("Basecamp tokens deactivated", logger.UserID(userID))
	return nil
}

// History returns the token rows of userID, newest first
func (s *TokenService) History(ctx context.Context, userID string, limit int) ([]*models.OAuthToken, error) {
	return s.tokenRepo.ListHistory(ctx, userID, limit)
}

type refreshResult struct {
	token     *models.OAuthToken
	refreshed bool
}

// refreshCoalesced lets concurrent callers for the same user share one refresh
func (s *TokenService) refreshCoalesced(ctx context.Context, userID, trigger string, deadline time.Time) (*refreshResult, error) {
	// The shared call must not die with whichever caller happened to start it.
	detached := context.WithoutCancel(ctx)

	v, err, shared := s.group.Do(userID, func() (interface{}, error) {
		return s.refreshExclusive(detached, userID, trigger, deadline)
	})
	if shared {
		observability.TokenRefreshesCoalesced.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*refreshResult), nil
}

// stillValid reports whether current makes a refresh for trigger unnecessary
func (s *TokenService) stillValid(current *models.OAuthToken, trigger string, deadline time.Time) bool {
	switch trigger {
	case refreshTriggerRequest:
		return !s.IsExpired(current)
	case refreshTriggerCron:
		return current.ExpiresAt == nil || current.ExpiresAt.After(deadline)
	default:
		return false
	}
}

func (s *TokenService) refreshExclusive(ctx context.Context, userID, trigger string, deadline time.Time) (*refreshResult, error) {
	log := s.log.WithContext(ctx).WithFields(logger.UserID(userID), logger.String("trigger", trigger))

	if s.locker != nil {
		lock, err := s.locker.TryAcquire(ctx, "basecamp-refresh:"+userID, s.lockTTL, s.lockTTL)
		if err != nil {
			log.Warn("Refresh lock unavailable, refreshing without it", logger.Error(err))
		} else {
			defer func() {
				if err := lock.Release(ctx); err != nil {
					log.Warn("Failed to release refresh lock", logger.Error(err))
				}
			}()
		}
	}

	// Another caller or instance may have rotated the token while we waited.
	current, err := s.tokenRepo.GetActiveToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.stillValid(current, trigger, deadline) {
		log.Debug("Token already rotated by another refresh")
		return &refreshResult{token: current}, nil
	}
	if !current.HasRefreshToken() {
		return nil, apperrors.ExpiredNoRefresh(userID)
	}

	fresh, err := s.Refresh(ctx, userID, *current.RefreshToken)
	if err == nil && s.IsExpired(fresh) {
		err = apperrors.RefreshFailed(errIssuedExpired)
	}
	observability.TokenRefreshesTotal.WithLabelValues(trigger, observability.Result(err)).Inc()
	if err != nil {
		log.Warn("Basecamp token refresh failed", logger.Error(err))
		return nil, err
	}

	log.Info("Basecamp token refreshed", logger.ExpiresAt(fresh.ExpiresAt))
	return &refreshResult{token: fresh, refreshed: true}, nil
}
