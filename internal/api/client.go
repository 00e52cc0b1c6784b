package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
	// MaxRetries for rate limit errors
	MaxRetries = 3
	// InitialBackoff for rate limit retries
	InitialBackoff = 2 * time.Second
)

// Error types for specific API errors
type (
	// AuthenticationError indicates an authentication failure
	AuthenticationError struct{ Message string }
	// RateLimitError indicates rate limit exceeded
	RateLimitError struct{ Message string }
	// NotFoundError indicates a resource was not found
	NotFoundError struct{ Message string }
	// ValidationError indicates invalid input
	ValidationError struct{ Message string }
)

func (e AuthenticationError) Error() string { return e.Message }
func (e RateLimitError) Error() string      { return e.Message }
func (e NotFoundError) Error() string       { return e.Message }
func (e ValidationError) Error() string     { return e.Message }

// Client talks to a semantic table enrichment backend. All endpoints live
// under {baseURL}/api and require a bearer token.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
	log        zerolog.Logger
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// WithTimeout sets a custom timeout for the HTTP client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request-level debug logging.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a client for the backend at baseURL. Tokens are obtained
// from the given provider on every request, so an expiring sign-in token is
// refreshed transparently.
func NewClient(baseURL string, tokens TokenProvider, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ValidationError{Message: "base URL is required"}
	}
	if tokens == nil {
		return nil, ValidationError{Message: "token provider is required"}
	}

	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		log:     zerolog.Nop(),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	if ts, ok := tokens.(*TokenSource); ok {
		ts.bind(c)
	}
	return c, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiURL joins a path under {baseURL}/api with optional query parameters.
func (c *Client) apiURL(path string, query url.Values) string {
	u := c.baseURL + "/api" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// call performs a JSON request against an API path and decodes the response
// into out when out is non-nil. Rate-limited calls are retried with
// exponential backoff.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	raw, err := c.callRaw(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s %s response: %w", method, path, err)
	}
	return nil
}

// callRaw is call without response decoding; it returns the raw body.
func (c *Client) callRaw(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var raw []byte
	operation := func() error {
		var err error
		raw, err = c.doOnce(ctx, method, path, query, body)
		return retryableOnly(err)
	}
	if err := backoff.Retry(operation, c.retryPolicy(ctx)); err != nil {
		return nil, err
	}
	return raw, nil
}

// retryableOnly marks every error except rate limiting as permanent so
// backoff gives up immediately.
func retryableOnly(err error) error {
	if err == nil {
		return nil
	}
	var rateErr RateLimitError
	if errors.As(err, &rateErr) {
		return err
	}
	return backoff.Permanent(err)
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = InitialBackoff
	return backoff.WithContext(backoff.WithMaxRetries(bo, MaxRetries), ctx)
}

// doOnce performs a single JSON request with auth headers.
func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if body != nil {
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	return c.send(req)
}

// upload performs a multipart POST with a CSV file part and a name field,
// the shape the dataset and table upload endpoints expect.
func (c *Client) upload(ctx context.Context, path, name, filename string, csvData []byte, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("name", name); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(csvData); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL(path, nil), &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	raw, err := c.send(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse upload response: %w", err)
	}
	return nil
}

// authorize attaches the bearer token from the token provider.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// send executes the request and maps non-200 statuses to typed errors.
func (c *Client) send(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, AuthenticationError{Message: "invalid or expired credentials"}
		case http.StatusNotFound:
			return nil, NotFoundError{Message: fmt.Sprintf("not found: %s", req.URL.Path)}
		case http.StatusTooManyRequests:
			return nil, RateLimitError{Message: fmt.Sprintf("rate limit exceeded: %s", string(respBody))}
		case http.StatusBadRequest:
			return nil, ValidationError{Message: fmt.Sprintf("invalid request: %s", string(respBody))}
		default:
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
		}
	}

	return respBody, nil
}
