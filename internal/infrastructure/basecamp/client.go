package basecamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainservice "github.com/bravo68web/qadeck/internal/domain/service"
	"github.com/bravo68web/qadeck/internal/observability"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
	"github.com/bravo68web/qadeck/pkg/logger"
)

// maxPages bounds how many Link-header pages a list call follows
const maxPages = 50

var nextLink = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// Options configures a Client. Zero IDs passed to resource methods fall back
// to the defaults set here.
type Options struct {
	AccountID   string
	UserAgent   string
	BaseURL     string
	ProjectID   int64
	CardTableID int64
	ColumnID    int64
	UserID      string
	Timeout     time.Duration
	RetryCount  int
}

// Client is an authenticated Basecamp 3 REST client acting for one user.
type Client struct {
	opts   Options
	tokens domainservice.TokenSource
	http   *resty.Client
	tracer trace.Tracer
	log    *logger.Logger
}

var (
	_ domainservice.BasecampAPI           = (*Client)(nil)
	_ domainservice.BasecampClientFactory = (*Client)(nil)
)

// NewClient validates opts and builds the client
func NewClient(opts Options, tokens domainservice.TokenSource) (*Client, error) {
	switch {
	case strings.TrimSpace(opts.AccountID) == "":
		return nil, apperrors.ConfigError("basecamp client: account id is required")
	case strings.TrimSpace(opts.UserAgent) == "":
		return nil, apperrors.ConfigError("basecamp client: user agent is required")
	case strings.TrimSpace(opts.BaseURL) == "":
		return nil, apperrors.ConfigError("basecamp client: base url is required")
	case tokens == nil:
		return nil, apperrors.ConfigError("basecamp client: token source is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/") + "/" + opts.AccountID).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryIdempotent).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		opts:   opts,
		tokens: tokens,
		http:   httpClient,
		tracer: otel.Tracer("github.com/bravo68web/qadeck/basecamp"),
		log:    logger.Get().WithFields(logger.Component("basecamp-client")),
	}, nil
}

// retryIdempotent retries GETs on transport errors, 429 and 5xx. Writes are never retried.
func retryIdempotent(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
}

// WithUser returns a shallow copy acting on behalf of userID
func (c *Client) WithUser(userID string) *Client {
	cp := *c
	cp.opts.UserID = userID
	cp.log = c.log.WithFields(logger.UserID(userID))
	return &cp
}

// ForUser implements BasecampClientFactory
func (c *Client) ForUser(userID string) domainservice.BasecampAPI {
	return c.WithUser(userID)
}

// Options returns the client's configuration
func (c *Client) Options() Options {
	return c.opts
}

// Request performs an authenticated call against the account-scoped API and
// decodes a JSON response into out when out is non-nil.
func (c *Client) Request(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := c.do(ctx, method, path, body, out)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (resp *resty.Response, err error) {
	op := method + " " + path

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Recovered panic in basecamp request", logger.Operation(op), logger.Any("panic", r))
			resp, err = nil, apperrors.InternalError(fmt.Sprintf("%s: unexpected failure", op), fmt.Errorf("panic: %v", r))
		}
	}()

	if c.opts.UserID == "" {
		return nil, apperrors.Unauthorized("basecamp client is not bound to a user", apperrors.ErrUnauthorized)
	}

	token, err := c.tokens.GetValidAccessToken(ctx, c.opts.UserID)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "basecamp "+method, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("basecamp.path", path),
	))
	defer span.End()

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err = req.Execute(method, path)
	if err != nil {
		observability.ObserveBasecampRequest(method, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		c.log.WithContext(ctx).Warn("Basecamp request failed", logger.Operation(op), logger.Error(err))
		return nil, apperrors.Transport(op, err)
	}
	observability.ObserveBasecampRequest(method, resp.StatusCode(), time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		span.SetStatus(codes.Error, resp.Status())
		c.log.WithContext(ctx).Warn("Basecamp returned an error status",
			logger.Operation(op),
			logger.StatusCode(resp.StatusCode()),
		)
		return resp, apperrors.RemoteAPI(op, resp.StatusCode(), resp.Status(), resp.String())
	}

	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return resp, apperrors.RemoteAPI(op, resp.StatusCode(), resp.Status(), "malformed response body: "+err.Error())
		}
	}
	return resp, nil
}

// getAll follows Link rel="next" headers and concatenates every page
func getAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	items := make([]T, 0)
	next := path
	for page := 0; next != "" && page < maxPages; page++ {
		var batch []T
		resp, err := c.do(ctx, http.MethodGet, next, nil, &batch)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
		next = c.nextPage(ctx, resp.Header().Get("Link"))
	}
	return items, nil
}

// nextPage extracts the rel="next" target. Absolute links pointing away from
// the configured API host are not followed so the bearer token stays there.
func (c *Client) nextPage(ctx context.Context, link string) string {
	m := nextLink.FindStringSubmatch(link)
	if len(m) != 2 {
		return ""
	}

	target, err := url.Parse(m[1])
	if err != nil {
		c.log.WithContext(ctx).Warn("Ignoring malformed pagination link", logger.String("link", m[1]))
		return ""
	}
	if !target.IsAbs() {
		return m[1]
	}

	base, err := url.Parse(c.opts.BaseURL)
	if err != nil || !strings.EqualFold(base.Scheme, target.Scheme) || !strings.EqualFold(base.Host, target.Host) {
		c.log.WithContext(ctx).Warn("Ignoring pagination link to a foreign host", logger.String("host", target.Host))
		return ""
	}
	return m[1]
}

// IsNotFound reports a 404 from the remote API
func IsNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrRemoteAPI) && apperrors.StatusOf(err) == http.StatusNotFound
}
