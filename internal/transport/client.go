// Package transport is the resilient HTTP layer shared by the platform client
// and supplier drivers.
//
// Every request is paced by a token bucket. A 429 response is waited out and
// reissued without consuming a retry attempt, up to its own ceiling. Network
// errors and 5xx responses are retried with exponential backoff. Any other
// non-2xx response fails immediately.
package transport

import (
	"bytes"
	"context"
	"io"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentstation/stocksync/pkg/constants"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client provides paced, retrying HTTP with authentication.
type Client struct {
	service    string
	http       *http.Client
	auth       Authenticator
	credential string
	limiter    *rate.Limiter
	userAgent  string

	maxRetries          int
	maxRateLimitRetries int
	backoff             time.Duration
	rateLimitDelay      time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client, e.g. to attach a cookie jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRequestsPerSecond sets the pacing rate. Zero or negative disables pacing.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetries sets the transient attempt ceiling and base backoff.
func WithRetries(maxAttempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxRetries = maxAttempts
		}
		if backoff >= 0 {
			c.backoff = backoff
		}
	}
}

// WithRateLimitRetries sets the 429 ceiling and the wait used when the server
// sends no Retry-After.
func WithRateLimitRetries(maxWaits int, defaultDelay time.Duration) Option {
	return func(c *Client) {
		if maxWaits > 0 {
			c.maxRateLimitRetries = maxWaits
		}
		if defaultDelay >= 0 {
			c.rateLimitDelay = defaultDelay
		}
	}
}

// WithSleep replaces the blocking wait used for backoff.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a new transport client. service names the remote side in errors
// and logs.
func New(service string, auth Authenticator, credential string, opts ...Option) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	c := &Client{
		service:             service,
		http:                &http.Client{Timeout: DefaultHTTPTimeout},
		auth:                auth,
		credential:          credential,
		limiter:             rate.NewLimiter(rate.Limit(constants.DefaultRequestsPerSecond), 1),
		maxRetries:          constants.MaxRetries,
		maxRateLimitRetries: constants.MaxRateLimitRetries,
		backoff:             constants.RetryBackoff,
		rateLimitDelay:      constants.RateLimitRetryDelay,
		sleep:               sleepContext,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCredential replaces the credential applied to subsequent requests, e.g.
// after a token login.
func (c *Client) SetCredential(credential string) {
	c.credential = credential
}

// Do performs a request under the pacing and retry policy. Only 2xx
// responses are returned without error.
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	logger := logging.FromContext(ctx)

	if _, err := http.NewRequestWithContext(ctx, r.Method, r.URL, nil); err != nil {
		return nil, errors.WrapResource("create", "request", r.Method+" "+r.URL, err)
	}

	rateLimitAttempts := 0
	transientRetryAttempts := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.send(ctx, r)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if err == nil && resp.StatusCode == http.StatusTooManyRequests {
			rateLimitAttempts++
			if rateLimitAttempts > c.maxRateLimitRetries {
				return nil, &errors.APIError{
					Service:    c.service,
					StatusCode: resp.StatusCode,
					Endpoint:   r.URL,
					Message:    "rate limit retries exhausted",
				}
			}
			wait := retryAfter(resp.Header, c.now(), c.rateLimitDelay)
			logger.Warn().
				Str("service", c.service).
				Str("method", r.Method).
				Int("attempt", rateLimitAttempts).
				Dur("wait", wait).
				Msg("Rate limited, waiting")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		failure := c.failure(r, resp, err)
		if !failure.Transient() {
			return nil, failure
		}

		transientRetryAttempts++
		if transientRetryAttempts >= c.maxRetries {
			return nil, failure
		}
		wait := c.backoff * time.Duration(math.Pow(2, float64(transientRetryAttempts-1)))
		logger.Warn().
			Err(failure).
			Str("service", c.service).
			Str("method", r.Method).
			Int("attempt", transientRetryAttempts).
			Dur("wait", wait).
			Msg("Request failed, retrying")
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// GetJSON performs a GET and decodes the body into target.
func (c *Client) GetJSON(ctx context.Context, rawURL string, target any) (*Response, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, URL: rawURL})
	if err != nil {
		return nil, err
	}
	return resp, DecodeResponse(resp, target)
}

// PostJSON performs a POST with a JSON body and decodes the reply into target,
// which may be nil.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body, target any) (*Response, error) {
	req, err := NewJSONRequest(http.MethodPost, rawURL, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return resp, nil
	}
	return resp, DecodeResponse(resp, target)
}

func (c *Client) send(ctx context.Context, r *Request) (*Response, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, errors.WrapResource("create", "request", r.Method+" "+r.URL, err)
	}
	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.credential != "" {
		c.auth.Apply(req, c.credential)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.FromContext(ctx).Debug().Err(cerr).Msg("Failed to close response body")
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapIO("read", "response body", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) failure(r *Request, resp *Response, err error) *errors.APIError {
	if err != nil {
		return &errors.APIError{
			Service:  c.service,
			Endpoint: r.URL,
			Message:  err.Error(),
			Err:      err,
		}
	}
	return &errors.APIError{
		Service:    c.service,
		StatusCode: resp.StatusCode,
		Endpoint:   r.URL,
		Message:    snippet(resp.Body),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
