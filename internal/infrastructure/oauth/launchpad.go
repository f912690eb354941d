package oauth

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"github.com/bravo68web/qadeck/internal/domain/models"
	domainservice "github.com/bravo68web/qadeck/internal/domain/service"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
	"github.com/bravo68web/qadeck/pkg/logger"
)

const (
	authorizePath = "/authorization/new"
	tokenPath     = "/authorization/token"
	grantType     = "web_server"
)

// Config holds the Basecamp OAuth application settings
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	LaunchpadURL string
	UserAgent    string
	Timeout      time.Duration
}

// LaunchpadClient exchanges codes and refresh tokens with 37signals Launchpad
type LaunchpadClient struct {
	cfg    Config
	client *resty.Client
	oauth  *oauth2.Config
	now    func() time.Time
	log    *logger.Logger
}

var _ domainservice.OAuthProvider = (*LaunchpadClient)(nil)

// NewLaunchpadClient creates a Launchpad client. Token requests are never
// retried because a refresh token may be single-use.
func NewLaunchpadClient(cfg Config) *LaunchpadClient {
	base := strings.TrimRight(cfg.LaunchpadURL, "/")

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &LaunchpadClient{
		cfg:    cfg,
		client: client,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + authorizePath,
				TokenURL: base + tokenPath,
			},
		},
		now: time.Now,
		log: logger.Get().WithFields(logger.Component("launchpad-client")),
	}
}

// AuthorizationURL builds the consent URL with the web_server grant type
func (c *LaunchpadClient) AuthorizationURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("type", grantType))
}

// ExchangeCode trades an authorization code for tokens
func (c *LaunchpadClient) ExchangeCode(ctx context.Context, code string) (*models.TokenData, error) {
	body := c.baseBody()
	body["code"] = code
	return c.requestToken(ctx, "exchange authorization code", body)
}

// RefreshToken trades a refresh token for a new access token
func (c *LaunchpadClient) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenData, error) {
	body := c.baseBody()
	body["refresh_token"] = refreshToken
	return c.requestToken(ctx, "refresh access token", body)
}

func (c *LaunchpadClient) baseBody() map[string]string {
	return map[string]string{
		"type":          grantType,
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"redirect_uri":  c.cfg.RedirectURI,
	}
}

func (c *LaunchpadClient) requestToken(ctx context.Context, op string, body map[string]string) (*models.TokenData, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(tokenPath)
	if err != nil {
		c.log.Warn("Launchpad token request failed", logger.Operation(op), logger.Error(err))
		return nil, apperrors.Transport(op, err)
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		c.log.Warn("Launchpad rejected token request",
			logger.Operation(op),
			logger.StatusCode(resp.StatusCode()),
		)
		return nil, apperrors.RemoteAPI(op, resp.StatusCode(), resp.Status(), resp.String())
	}

	var tr TokenResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil {
		return nil, apperrors.RemoteAPI(op, resp.StatusCode(), resp.Status(), "malformed token response: "+err.Error())
	}
	if tr.AccessToken == "" {
		return nil, apperrors.RemoteAPI(op, resp.StatusCode(), resp.Status(), "token response has no access_token")
	}

	data := tr.TokenData(c.now())
	return &data, nil
}

// TokenResponse is the Launchpad token endpoint payload. Expiry may arrive as
// expires_in seconds or as an absolute expires_at (RFC 3339 or unix seconds).
type TokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int64           `json:"expires_in"`
	ExpiresAt    json.RawMessage `json:"expires_at"`
	TokenType    string          `json:"token_type"`
	Scope        string          `json:"scope"`
}

// TokenData converts the payload to a storable token set, resolving expiry against now
func (r TokenResponse) TokenData(now time.Time) models.TokenData {
	data := models.TokenData{
		AccessToken: r.AccessToken,
		TokenType:   r.TokenType,
		ExpiresAt:   r.expiry(now),
	}
	if data.TokenType == "" {
		data.TokenType = "Bearer"
	}
	if r.RefreshToken != "" {
		rt := r.RefreshToken
		data.RefreshToken = &rt
	}
	if r.Scope != "" {
		scope := r.Scope
		data.Scope = &scope
	}
	return data
}

func (r TokenResponse) expiry(now time.Time) *time.Time {
	if raw := strings.TrimSpace(string(r.ExpiresAt)); raw != "" && raw != "null" {
		var s string
		if json.Unmarshal(r.ExpiresAt, &s) == nil {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return &t
			}
		}
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.Unix(secs, 0).UTC()
			return &t
		}
	}
	if r.ExpiresIn > 0 {
		t := now.Add(time.Duration(r.ExpiresIn) * time.Second)
		return &t
	}
	return nil
}
