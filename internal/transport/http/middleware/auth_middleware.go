package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bravo68web/qadeck/internal/application/dto"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
	"github.com/bravo68web/qadeck/pkg/logger"
)

// ContextKey is a type for context keys
type ContextKey string

const (
	// IdentityContextKey is the key for storing the caller identity in context
	IdentityContextKey ContextKey = "identity"
)

// Identity is the dashboard caller a request acts for
type Identity struct {
	UserID string
	Email  string
	Method string
}

// TokenVerifier turns a bearer token into an Identity
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Identity, error)
}

// callerClaims are the claims of a dashboard session token
type callerClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// HMACVerifier accepts HS256 tokens signed with a shared secret
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier for the given secret
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify checks an HS256 signature and expiry and returns the subject
func (v *HMACVerifier) Verify(_ context.Context, raw string) (*Identity, error) {
	claims := &callerClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, errors.New("token has no subject")
	}
	return &Identity{UserID: userID, Email: claims.Email, Method: "jwt"}, nil
}

// OIDCVerifier accepts ID tokens from an OpenID Connect issuer
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds a verifier for clientID
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{
			ClientID:          clientID,
			SkipClientIDCheck: clientID == "",
		}),
	}, nil
}

// Verify validates an ID token against the issuer keys and, when configured, the client ID
func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims struct {
		Email string `json:"email"`
	}
	_ = idToken.Claims(&claims)
	return &Identity{UserID: idToken.Subject, Email: claims.Email, Method: "oidc"}, nil
}

// AuthMiddleware identifies the dashboard caller of a request
type AuthMiddleware struct {
	verifiers []TokenVerifier
	log       *logger.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. Verifiers are tried in order.
func NewAuthMiddleware(verifiers ...TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifiers: verifiers,
		log:       logger.Get().WithFields(logger.Component("auth-middleware")),
	}
}

// RequireAuth rejects requests without a valid caller token
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := m.identify(c)
		if identity == nil {
			m.log.Warn("Authentication required but not provided",
				logger.Path(c.Request.URL.Path),
				logger.Method(c.Request.Method),
				logger.ClientIP(c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.Fail(apperrors.Unauthorized("", apperrors.ErrUnauthorized)))
			return
		}

		m.setIdentity(c, identity)
		c.Next()
	}
}

// identify reads the token from the Authorization header, falling back to the
// access_token query parameter for browser navigations.
func (m *AuthMiddleware) identify(c *gin.Context) *Identity {
	raw := ""
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		raw = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	} else if q := c.Query("access_token"); q != "" {
		raw = q
	}
	if raw == "" {
		return nil
	}

	ctx := c.Request.Context()
	for _, v := range m.verifiers {
		identity, err := v.Verify(ctx, raw)
		if err == nil {
			m.log.Debug("Caller authenticated",
				logger.UserID(identity.UserID),
				logger.String("auth_method", identity.Method),
			)
			return identity
		}
		m.log.Debug("Token rejected by verifier", logger.Error(err))
	}
	return nil
}

func (m *AuthMiddleware) setIdentity(c *gin.Context, identity *Identity) {
	c.Set(string(IdentityContextKey), identity)
	ctx := context.WithValue(c.Request.Context(), IdentityContextKey, identity)
	c.Request = c.Request.WithContext(ctx)
}

// GetIdentity retrieves the authenticated caller from the gin context
func GetIdentity(c *gin.Context) *Identity {
	if v, exists := c.Get(string(IdentityContextKey)); exists {
		if id, ok := v.(*Identity); ok {
			return id
		}
	}
	return nil
}

// GetUserID returns the caller's user ID, or "" when unauthenticated
func GetUserID(c *gin.Context) string {
	if id := GetIdentity(c); id != nil {
		return id.UserID
	}
	return ""
}
