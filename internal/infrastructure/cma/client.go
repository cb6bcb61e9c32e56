// Package cma is a client for the target stack's content management API and
// the marketplace apps API.
package cma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contentstack/cli-sub008/internal/infrastructure/config"
)

const userAgent = "cli-sub008/1.0"

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

// Client calls the management API of one target stack.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	appsBaseURL string
	apiKey      string
	token       string
	branch      string
	orgUID      string
	retry       RetryConfig
	logger      *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithRetryConfig overrides the retry policy
func WithRetryConfig(r RetryConfig) Option {
	return func(cl *Client) {
		cl.retry = r
	}
}

// WithLogger sets the logger used for retry diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient creates a client for the configured target stack
func NewClient(cfg config.TargetConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryBackoff > 0 {
		retry.RetryDelay = cfg.RetryBackoff
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		appsBaseURL: strings.TrimRight(cfg.AppsBaseURL, "/"),
		apiKey:      cfg.APIKey,
		token:       cfg.ManagementToken,
		branch:      cfg.Branch,
		orgUID:      cfg.OrgUID,
		retry:       retry,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIKey returns the target stack API key
func (c *Client) APIKey() string {
	return c.apiKey
}

type request struct {
	method string
	base   string
	path   string
	query  url.Values
	body   any
	// raw bodies are sent as-is with contentType
	raw         []byte
	contentType string
	apps        bool
}

// do executes a request with retries on transport errors, 429 and 5xx, and
// decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	u, err := c.buildURL(req)
	if err != nil {
		return fmt.Errorf("building URL: %w", err)
	}

	payload := req.raw
	contentType := req.contentType
	if req.body != nil {
		payload, err = json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		contentType = "application/json"
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			c.logger.Debug("Retrying request",
				zap.String("method", req.method),
				zap.String("path", req.path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.method, u, bodyReader)
		if err != nil {
			return fmt.Errorf("creating HTTP request: %w", err)
		}
		c.setHeaders(httpReq, req.apps, contentType)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%s %s: %w", req.method, req.path, err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := parseAPIError(resp.StatusCode, http.StatusText(resp.StatusCode), body)
			if apiErr.Retryable() {
				lastErr = apiErr
				continue
			}
			return apiErr
		}

		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}
	return lastErr
}

func (c *Client) buildURL(req request) (string, error) {
	base := c.baseURL
	if req.apps {
		base = c.appsBaseURL
	}
	if base == "" {
		return "", errors.New("no base URL configured")
	}
	path := req.path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := url.Parse(base + path)
	if err != nil {
		return "", err
	}
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}
	return u.String(), nil
}

func (c *Client) setHeaders(req *http.Request, apps bool, contentType string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("authorization", c.token)
	}
	if apps {
		if c.orgUID != "" {
			req.Header.Set("organization_uid", c.orgUID)
		}
		return
	}
	req.Header.Set("api_key", c.apiKey)
	if c.branch != "" {
		req.Header.Set("branch", c.branch)
	}
}

// calculateBackoff calculates the backoff delay for the given attempt.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retry.RetryDelay) * math.Pow(c.retry.Multiplier, float64(attempt-1))
	if c.retry.MaxDelay > 0 && delay > float64(c.retry.MaxDelay) {
		delay = float64(c.retry.MaxDelay)
	}
	// Add jitter (±25%)
	jitter := delay * 0.25
	delay = delay + (rand.Float64()*2-1)*jitter
	return time.Duration(delay)
}
