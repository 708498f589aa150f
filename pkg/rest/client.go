// Package rest is the HTTP client shared by the REST source connectors. It
// adds token authentication, client side rate limiting and retries with
// exponential backoff on throttled or failed requests.
package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/datazip-inc/airlake/constants"
	"github.com/datazip-inc/airlake/utils/logger"
	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const maxErrorBodySize = 4 << 10

type Config struct {
	BaseURL string
	// Token is sent as "Authorization: <TokenType> <Token>"; TokenType
	// defaults to Bearer
	Token     string
	TokenType string
	Headers   map[string]string

	// requests per second; 0 uses the default, negative disables limiting
	RateLimit         float64
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	Timeout           time.Duration

	// base client, the token transport wraps its transport
	HTTPClient *http.Client
}

type Client struct {
	baseURL      *url.URL
	http         *http.Client
	limiter      *rate.Limiter
	headers      map[string]string
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// Response exposes what pagination needs from a response besides its body
type Response struct {
	StatusCode int
	Header     http.Header
}

// HTTPError is returned for non 2xx responses
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil || baseURL.Host == "" {
		return nil, fmt.Errorf("%w: invalid api url[%s]", constants.ErrInvalidConfig, cfg.BaseURL)
	}

	base := &http.Client{Timeout: constants.DefaultHTTPTimeout}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		base = &copied
	}
	if cfg.Timeout > 0 {
		base.Timeout = cfg.Timeout
	}

	httpClient := base
	if cfg.Token != "" {
		tokenType := cfg.TokenType
		if tokenType == "" {
			tokenType = "Bearer"
		}
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: tokenType})
		httpClient = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), source)
		httpClient.Timeout = base.Timeout
	}

	limit := rate.Limit(cfg.RateLimit)
	switch {
	case cfg.RateLimit == 0:
		limit = rate.Limit(constants.DefaultRateLimit)
	case cfg.RateLimit < 0:
		limit = rate.Inf
	}

	client := &Client{
		baseURL:      baseURL,
		http:         httpClient,
		limiter:      rate.NewLimiter(limit, 1),
		headers:      cfg.Headers,
		maxRetries:   cfg.MaxRetries,
		initialDelay: cfg.InitialRetryDelay,
		maxDelay:     cfg.MaxRetryDelay,
	}
	switch {
	case client.maxRetries == 0:
		client.maxRetries = constants.DefaultRetryCount
	case client.maxRetries < 0:
		client.maxRetries = 0
	}
	if client.initialDelay <= 0 {
		client.initialDelay = 500 * time.Millisecond
	}
	if client.maxDelay <= 0 {
		client.maxDelay = constants.DefaultMaxRetryDelay
	}

	return client, nil
}

// Get requests path (relative to the base url, or absolute) and decodes the
// JSON body into out when out is not nil
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any, out any) (*Response, error) {
	target, err := c.resolve(path, query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %s", err)
		}
	}

	var response *Response
	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.send(ctx, method, target, payload, out)
		if err == nil {
			response = resp
			return nil
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			if !httpErr.Retryable() {
				return backoff.Permanent(err)
			}
			if wait := retryAfter(resp); wait > 0 {
				if err := c.sleep(ctx, wait); err != nil {
					return backoff.Permanent(err)
				}
			}
		} else if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		logger.Debugf("Attempt %d of %s %s failed: %s", attempt, method, target, err)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialDelay
	policy.MaxInterval = c.maxDelay
	policy.MaxElapsedTime = 0

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte, out any) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = strings.NewReader(string(payload))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %s", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	response := &Response{StatusCode: resp.StatusCode, Header: resp.Header}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return response, &HTTPError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return response, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return response, backoff.Permanent(fmt.Errorf("failed to decode response of %s: %s", target, err))
	}
	return response, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("invalid request path[%s]: %s", path, err))
	}

	target := c.baseURL.ResolveReference(ref)
	if len(query) > 0 {
		merged := target.Query()
		for key, values := range query {
			merged[key] = values
		}
		target.RawQuery = merged.Encode()
	}
	return target.String(), nil
}

func (c *Client) sleep(ctx context.Context, wait time.Duration) error {
	if wait > c.maxDelay {
		wait = c.maxDelay
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryAfter reads the Retry-After header (seconds or HTTP date)
func retryAfter(resp *Response) time.Duration {
	if resp == nil {
		return 0
	}
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		return time.Until(at)
	}
	return 0
}
