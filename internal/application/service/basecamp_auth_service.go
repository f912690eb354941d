package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/bravo68web/qadeck/internal/domain/models"
	"github.com/bravo68web/qadeck/internal/domain/repository"
	domainservice "github.com/bravo68web/qadeck/internal/domain/service"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
	"github.com/bravo68web/qadeck/pkg/logger"
)

// DefaultStateTTL bounds how long a user has to finish the Launchpad consent screen
const DefaultStateTTL = 10 * time.Minute

// ConnectionStatus describes a user's Basecamp connection
type ConnectionStatus struct {
	Connected       bool       `json:"connected"`
	Expired         bool       `json:"expired"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	TokenType       string     `json:"token_type,omitempty"`
	ConnectedAt     *time.Time `json:"connected_at,omitempty"`
}

// BasecampAuthService runs the OAuth authorization-code flow that connects a
// dashboard user to Basecamp.
type BasecampAuthService struct {
	provider  domainservice.OAuthProvider
	tokenRepo repository.OAuthTokenRepository
	tokens    *TokenService
	states    domainservice.Cache
	stateTTL  time.Duration
	log       *logger.Logger
}

// NewBasecampAuthService creates a new BasecampAuthService. states holds
// pending authorization states and must be shared by every instance.
func NewBasecampAuthService(
	provider domainservice.OAuthProvider,
	tokenRepo repository.OAuthTokenRepository,
	tokens *TokenService,
	states domainservice.Cache,
) *BasecampAuthService {
	return &BasecampAuthService{
		provider:  provider,
		tokenRepo: tokenRepo,
		tokens:    tokens,
		states:    states,
		stateTTL:  DefaultStateTTL,
		log:       logger.Get().WithFields(logger.Component("basecamp-auth")),
	}
}

// BeginAuthorization creates a single-use state bound to userID and returns it
// with the Launchpad URL the browser must visit.
func (s *BasecampAuthService) BeginAuthorization(ctx context.Context, userID string) (state, authURL string, err error) {
	if strings.TrimSpace(userID) == "" {
		return "", "", apperrors.Unauthorized("", apperrors.ErrUnauthorized)
	}

	state, err = generateRandomState()
	if err != nil {
		return "", "", apperrors.InternalError("failed to generate state", err)
	}
	if err := s.states.Set(ctx, stateKey(state), userID, s.stateTTL); err != nil {
		return "", "", apperrors.InternalError("failed to store authorization state", err)
	}

	return state, s.provider.AuthorizationURL(state), nil
}

// CompleteAuthorization consumes state, exchanges code and stores the tokens
// for the user who started the flow.
func (s *BasecampAuthService) CompleteAuthorization(ctx context.Context, state, code string) (string, *models.OAuthToken, error) {
	if state == "" || code == "" {
		return "", nil, apperrors.BadRequest("missing code or state", apperrors.ErrInvalidInput)
	}

	var userID string
	ok, err := s.states.Get(ctx, stateKey(state), &userID)
	if err != nil {
		return "", nil, apperrors.InternalError("failed to read authorization state", err)
	}
	if !ok || userID == "" {
		return "", nil, apperrors.Unauthorized("authorization state is invalid or expired", apperrors.ErrInvalidCredentials)
	}
	if err := s.states.Delete(ctx, stateKey(state)); err != nil {
		s.log.WithContext(ctx).Warn("Failed to consume authorization state", logger.Error(err))
	}

	data, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		s.log.WithContext(ctx).Warn("Authorization code exchange failed", logger.UserID(userID), logger.Error(err))
		return userID, nil, err
	}

	token, err := s.tokenRepo.SaveTokens(ctx, userID, *data)
	if err != nil {
		return userID, nil, err
	}

	s.log.WithContext(ctx).Info("Basecamp connected", logger.UserID(userID), logger.ExpiresAt(token.ExpiresAt))
	return userID, token, nil
}

// Status reports whether userID has a usable Basecamp connection
func (s *BasecampAuthService) Status(ctx context.Context, userID string) (*ConnectionStatus, error) {
	token, err := s.tokenRepo.GetActiveToken(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenNotFound) {
			return &ConnectionStatus{}, nil
		}
		return nil, err
	}

	connectedAt := token.CreatedAt
	return &ConnectionStatus{
		Connected:       true,
		Expired:         s.tokens.IsExpired(token),
		HasRefreshToken: token.HasRefreshToken(),
		ExpiresAt:       token.ExpiresAt,
		TokenType:       token.TokenType,
		ConnectedAt:     &connectedAt,
	}, nil
}

// Disconnect deactivates the user's tokens. Disconnecting twice is not an error.
func (s *BasecampAuthService) Disconnect(ctx context.Context, userID string) error {
	return s.tokens.Revoke(ctx, userID)
}

func stateKey(state string) string {
	return "oauth-state:" + state
}

// generateRandomState generates a URL-safe random state value
func generateRandomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
