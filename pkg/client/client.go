// Package client provides a typed HTTP client SDK for chamicore-abbrev.
//
// Transient failures (transport errors and 5xx responses) are retried with
// exponential backoff; 4xx responses fail immediately with an *APIError.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"git.cscs.ch/openchami/chamicore-abbrev/pkg/types"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultMaxRetries      = 3
	defaultInitialInterval = 200 * time.Millisecond
	maxResponseBytes       = 4 << 20

	searchPath = "/get_abbreviations"
	seedPath   = "/seed"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the root URL of the service (for example: http://localhost:5000).
	BaseURL string
	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt for
	// transient errors. Defaults to 3; negative disables retries.
	MaxRetries int
	// RetryInitialInterval is the first backoff delay. Defaults to 200ms.
	RetryInitialInterval time.Duration
	// HTTPClient is an optional custom http.Client.
	HTTPClient *http.Client
}

// Client is the typed HTTP SDK for the abbreviation service.
type Client struct {
	baseURL string
	cfg     Config
	http    *http.Client
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	// Problem is set when the server answered with an RFC 9457 document.
	Problem *types.ProblemDetail
	Body    string
}

func (e *APIError) Error() string {
	if e.Problem != nil && e.Problem.Detail != "" {
		return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Problem.Detail)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		return fmt.Sprintf("api error: status %d: %s", e.StatusCode, body)
	}
	return fmt.Sprintf("api error: status %d", e.StatusCode)
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("client: BaseURL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("client: invalid BaseURL: %w", err)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryInitialInterval == 0 {
		cfg.RetryInitialInterval = defaultInitialInterval
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL: baseURL,
		cfg:     cfg,
		http:    httpClient,
	}, nil
}

// Search returns the entries whose abbreviation contains query, ordered by
// abbreviation. A blank query returns every entry.
func (c *Client) Search(ctx context.Context, query string) ([]types.Entry, error) {
	path := searchPath
	if query != "" {
		path += "?" + url.Values{"search": {query}}.Encode()
	}

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("searching abbreviations: %w", err)
	}

	items := []types.Entry{}
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return items, nil
}

// Seed loads the built-in catalog into the service and returns its
// confirmation message.
func (c *Client) Seed(ctx context.Context) (string, error) {
	body, err := c.get(ctx, seedPath)
	if err != nil {
		return "", fmt.Errorf("seeding catalog: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInitialInterval

	tries := uint(1)
	if c.cfg.MaxRetries > 0 {
		tries += uint(c.cfg.MaxRetries)
	}

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		return c.doOnce(ctx, http.MethodGet, path)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
	if err != nil {
		// The final attempt's error comes back still marked permanent.
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Unwrap()
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) doOnce(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := newAPIError(resp, body)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, apiErr
		}
		return nil, backoff.Permanent(apiErr)
	}
	return body, nil
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json") {
		var problem types.ProblemDetail
		if err := json.Unmarshal(body, &problem); err == nil {
			apiErr.Problem = &problem
		}
	}
	return apiErr
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
