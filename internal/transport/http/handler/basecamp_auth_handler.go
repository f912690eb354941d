package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bravo68web/qadeck/internal/application/dto"
	"github.com/bravo68web/qadeck/internal/application/service"
	"github.com/bravo68web/qadeck/internal/config"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
	"github.com/bravo68web/qadeck/pkg/logger"
)

// BasecampAuthHandler handles the Basecamp connect flow
type BasecampAuthHandler struct {
	authService *service.BasecampAuthService
	cfg         config.BasecampConfig
	secure      bool
	log         *logger.Logger
}

// NewBasecampAuthHandler creates a new BasecampAuthHandler instance
func NewBasecampAuthHandler(authService *service.BasecampAuthService, cfg config.BasecampConfig) *BasecampAuthHandler {
	return &BasecampAuthHandler{
		authService: authService,
		cfg:         cfg,
		secure:      strings.HasPrefix(cfg.RedirectURI, "https://"),
		log:         logger.Get().WithFields(logger.Component("basecamp-auth-handler")),
	}
}

// Login handles GET /api/v1/basecamp/auth/login. With ?redirect=true the
// browser is sent straight to Launchpad; otherwise the URL is returned.
func (h *BasecampAuthHandler) Login(c *gin.Context) {
	userID := requireUser(c)
	if userID == "" {
		return
	}

	state, authURL, err := h.authService.BeginAuthorization(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.StateCookieName, state, int(service.DefaultStateTTL.Seconds()), "/", "", h.secure, true)

	if c.Query("redirect") == "true" {
		c.Redirect(http.StatusFound, authURL)
		return
	}
	respondOK(c, http.StatusOK, dto.AuthorizationResponse{AuthorizationURL: authURL})
}

// Callback handles GET /api/v1/basecamp/auth/callback. It always ends in a
// redirect back to the dashboard's configuration page.
func (h *BasecampAuthHandler) Callback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		h.redirect(c, "", "Basecamp authorization was denied: "+providerErr)
		return
	}

	state := c.Query("state")
	cookieState, _ := c.Cookie(h.cfg.StateCookieName)
	c.SetCookie(h.cfg.StateCookieName, "", -1, "/", "", h.secure, true)

	if state == "" || cookieState == "" || state != cookieState {
		h.log.Warn("OAuth state mismatch", logger.ClientIP(c.ClientIP()))
		h.redirect(c, "", "Authorization state did not match, please try again")
		return
	}

	userID, _, err := h.authService.CompleteAuthorization(c.Request.Context(), state, c.Query("code"))
	if err != nil {
		h.log.Warn("Basecamp callback failed", logger.UserID(userID), logger.Error(err))
		h.redirect(c, "", callbackErrorMessage(err))
		return
	}
	h.redirect(c, "connected", "")
}

// Status handles GET /api/v1/basecamp/auth/status
func (h *BasecampAuthHandler) Status(c *gin.Context) {
	userID := requireUser(c)
	if userID == "" {
		return
	}

	status, err := h.authService.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, status)
}

// Logout handles POST /api/v1/basecamp/auth/logout
func (h *BasecampAuthHandler) Logout(c *gin.Context) {
	userID := requireUser(c)
	if userID == "" {
		return
	}

	if err := h.authService.Disconnect(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"connected": false})
}

func (h *BasecampAuthHandler) redirect(c *gin.Context, outcome, errMsg string) {
	target, err := url.Parse(h.cfg.ConfigPageURL)
	if err != nil {
		target = &url.URL{Path: "/"}
	}
	q := target.Query()
	if errMsg != "" {
		q.Set("error", errMsg)
	} else {
		q.Set("basecamp", outcome)
	}
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, target.String())
}

// callbackErrorMessage turns a failed authorization into a short message for
// the configuration page. The full error only goes to the log.
func callbackErrorMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return "Authorization expired or was already used, please try again"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "Basecamp did not return an authorization code"
	case errors.Is(err, apperrors.ErrTransport):
		return "Could not reach Basecamp, please try again"
	case errors.Is(err, apperrors.ErrRemoteAPI):
		return "Basecamp rejected the authorization code, please try again"
	default:
		return "Could not connect Basecamp, please try again"
	}
}
