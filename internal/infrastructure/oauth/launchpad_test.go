package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bravo68web/qadeck/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*LaunchpadClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewLaunchpadClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8080/api/v1/basecamp/auth/callback",
		LaunchpadURL: srv.URL,
		UserAgent:    "QA Dashboard (qa@example.com)",
		Timeout:      2 * time.Second,
	})
	c.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }
	return c, srv
}

func TestExchangeCode_SendsWebServerGrant(t *testing.T) {
	bodies := make(chan map[string]string, 1)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var got map[string]string
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, tokenPath, r.URL.Path)
		assert.Equal(t, "QA Dashboard (qa@example.com)", r.Header.Get("User-Agent"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		bodies <- got

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":1209600}`))
	})

	data, err := c.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	got := <-bodies

	assert.Equal(t, "web_server", got["type"])
	assert.Equal(t, "client-id", got["client_id"])
	assert.Equal(t, "client-secret", got["client_secret"])
	assert.Equal(t, "the-code", got["code"])
	assert.NotContains(t, got, "refresh_token")

	assert.Equal(t, "at", data.AccessToken)
	require.NotNil(t, data.RefreshToken)
	assert.Equal(t, "rt", *data.RefreshToken)
	assert.Equal(t, "Bearer", data.TokenType)
	require.NotNil(t, data.ExpiresAt)
	assert.Equal(t, time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), *data.ExpiresAt)
}

func TestRefreshToken_SendsRefreshToken(t *testing.T) {
	bodies := make(chan map[string]string, 1)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var got map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		bodies <- got
		// no Content-Type header on purpose
		_, _ = w.Write([]byte(`{"access_token":"new","expires_at":"2026-02-01T00:00:00Z","token_type":"Bearer"}`))
	})

	data, err := c.RefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)
	got := <-bodies

	assert.Equal(t, "web_server", got["type"])
	assert.Equal(t, "old-refresh", got["refresh_token"])
	assert.NotContains(t, got, "code")

	assert.Equal(t, "new", data.AccessToken)
	assert.Nil(t, data.RefreshToken)
	require.NotNil(t, data.ExpiresAt)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *data.ExpiresAt)
}

func TestRefreshToken_ProviderErrorIsPreserved(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"authorization_expired"}`))
	})

	_, err := c.RefreshToken(context.Background(), "revoked")
	require.Error(t, err)

	assert.ErrorIs(t, err, apperrors.ErrRemoteAPI)
	assert.Equal(t, http.StatusUnauthorized, apperrors.StatusOf(err))
	assert.Contains(t, err.Error(), "authorization_expired")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "token requests are not retried")
}

func TestRefreshToken_TransportError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.RefreshToken(context.Background(), "rt")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransport)
	assert.Equal(t, 0, apperrors.StatusOf(err))
}

func TestAuthorizationURL(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	raw := c.AuthorizationURL("xyz")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, srv.URL+authorizePath, u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	assert.Equal(t, "web_server", q.Get("type"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "http://localhost:8080/api/v1/basecamp/auth/callback", q.Get("redirect_uri"))
}

func TestTokenResponse_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, TokenResponse{AccessToken: "a"}.TokenData(now).ExpiresAt)

	unix := TokenResponse{AccessToken: "a", ExpiresAt: json.RawMessage(`1767229200`)}.TokenData(now)
	require.NotNil(t, unix.ExpiresAt)
	assert.Equal(t, int64(1767229200), unix.ExpiresAt.Unix())

	null := TokenResponse{AccessToken: "a", ExpiresAt: json.RawMessage(`null`), ExpiresIn: 60}.TokenData(now)
	require.NotNil(t, null.ExpiresAt)
	assert.Equal(t, now.Add(time.Minute), *null.ExpiresAt)
}
