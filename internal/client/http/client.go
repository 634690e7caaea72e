package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestOption represents a function that can modify an HTTP request
type RequestOption func(*http.Request)

// ClientOption represents a function that can modify the HTTP client
type ClientOption func(*HTTPClient)

// Middleware represents a function that wraps an http.RoundTripper
type Middleware func(http.RoundTripper) http.RoundTripper

// HTTPError represents an error returned from an HTTP request
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	Method     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d %s: %s", e.Method, e.URL, e.StatusCode, e.Status, e.Body)
}

// HTTPClient is an HTTP client with default headers, middleware and retries
type HTTPClient struct {
	httpClient     *http.Client
	baseURL        string
	defaultHeaders map[string]string
	retryConfig    *RetryConfig
	middlewares    []Middleware
	log            *zap.Logger
}

// RetryConfig configures the retry behavior
type RetryConfig struct {
	MaxRetries           int
	InitialInterval      time.Duration
	MaxInterval          time.Duration
	Multiplier           float64
	MaxElapsedTime       time.Duration
	RetryableStatusCodes []int
}

// DefaultRetryConfig provides sensible defaults for retries
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:           3,
		InitialInterval:      100 * time.Millisecond,
		MaxInterval:          10 * time.Second,
		Multiplier:           2.0,
		MaxElapsedTime:       30 * time.Second,
		RetryableStatusCodes: retryableStatusCodes,
	}
}

var retryableStatusCodes = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// NewHTTPClient creates a new HTTPClient with the given options
func NewHTTPClient(options ...ClientOption) *HTTPClient {
	client := &HTTPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		defaultHeaders: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		retryConfig: DefaultRetryConfig(),
	}

	for _, option := range options {
		option(client)
	}
	client.log = logger.OrGlobal(client.log, "http")

	// Apply middlewares to the transport
	if len(client.middlewares) > 0 {
		transport := client.httpClient.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}

		// Apply middlewares in reverse order so the first one is outermost
		for i := len(client.middlewares) - 1; i >= 0; i-- {
			transport = client.middlewares[i](transport)
		}
		client.httpClient.Transport = transport
	}

	return client
}

// WithBaseURL sets the base URL for all requests
func WithBaseURL(baseURL string) ClientOption {
	return func(c *HTTPClient) {
		c.baseURL = baseURL
	}
}

// WithDefaultHeader adds a default header to all requests
func WithDefaultHeader(key, value string) ClientOption {
	return func(c *HTTPClient) {
		c.defaultHeaders[key] = value
	}
}

// WithTimeout sets the timeout for all requests
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetryConfig sets the retry configuration. nil disables retries.
func WithRetryConfig(config *RetryConfig) ClientOption {
	return func(c *HTTPClient) {
		c.retryConfig = config
	}
}

// WithMiddleware adds a middleware to the client
func WithMiddleware(middleware Middleware) ClientOption {
	return func(c *HTTPClient) {
		c.middlewares = append(c.middlewares, middleware)
	}
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.log = l
	}
}

// WithHeader adds a header to the request
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// WithQueryParam adds a query parameter to the request
func WithQueryParam(key, value string) RequestOption {
	return func(req *http.Request) {
		q := req.URL.Query()
		q.Add(key, value)
		req.URL.RawQuery = q.Encode()
	}
}

// WithBearerToken adds bearer token authentication to the request
func WithBearerToken(token string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// Get performs an HTTP GET request
func (c *HTTPClient) Get(ctx context.Context, path string, options ...RequestOption) (*http.Response, error) {
	return c.DoRequest(ctx, http.MethodGet, path, nil, options...)
}

// Post performs an HTTP POST request with a JSON body
func (c *HTTPClient) Post(ctx context.Context, path string, body any, options ...RequestOption) (*http.Response, error) {
	return c.DoRequest(ctx, http.MethodPost, path, body, options...)
}

// GetJSON performs a GET and decodes the JSON response into target
func (c *HTTPClient) GetJSON(ctx context.Context, path string, target any, options ...RequestOption) error {
	resp, err := c.Get(ctx, path, options...)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target)
}

// PostJSON performs a POST and decodes the JSON response into target
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body, target any, options ...RequestOption) error {
	resp, err := c.Post(ctx, path, body, options...)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target)
}

func (c *HTTPClient) resolveURL(path string) (string, error) {
	if c.baseURL == "" {
		if _, err := url.ParseRequestURI(path); err != nil {
			return "", fmt.Errorf("invalid path used without base URL: %s, error: %w", path, err)
		}
		return path, nil
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(c.baseURL, "/") + path, nil
}

// DoRequest performs a request, retrying network errors and retryable status codes.
// Any status >= 400 is returned as *HTTPError with a nil response.
func (c *HTTPClient) DoRequest(ctx context.Context, method, path string, body any, options ...RequestOption) (*http.Response, error) {
	start := time.Now()

	fullURL, err := c.resolveURL(path)
	if err != nil {
		return nil, err
	}

	var bodyJSON []byte
	if body != nil {
		if bodyJSON, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	// The request is rebuilt per attempt so the body can be replayed.
	attempt := func() (*http.Response, error) {
		var bodyReader io.Reader
		if bodyJSON != nil {
			bodyReader = bytes.NewReader(bodyJSON)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		for key, value := range c.defaultHeaders {
			req.Header.Set(key, value)
		}
		for _, option := range options {
			option(req)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if resp.StatusCode < 400 {
			return resp, nil
		}

		bodyBytes, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		httpErr := &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        fullURL,
			Method:     method,
			Body:       string(bodyBytes),
		}
		if c.retryConfig != nil && slices.Contains(c.retryConfig.RetryableStatusCodes, resp.StatusCode) {
			return nil, httpErr
		}
		return nil, backoff.Permanent(httpErr)
	}

	var resp *http.Response
	if c.retryConfig != nil && c.retryConfig.MaxRetries > 0 {
		expBackoff := backoff.NewExponentialBackOff()
		expBackoff.InitialInterval = c.retryConfig.InitialInterval
		expBackoff.MaxInterval = c.retryConfig.MaxInterval
		expBackoff.Multiplier = c.retryConfig.Multiplier
		expBackoff.MaxElapsedTime = c.retryConfig.MaxElapsedTime

		b := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(c.retryConfig.MaxRetries)), ctx)
		resp, err = backoff.RetryWithData(attempt, b)
	} else {
		resp, err = attempt()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
	}

	duration := time.Since(start)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			c.log.Warn("HTTP error response",
				zap.String("method", method),
				zap.String("url", redact(fullURL)),
				zap.Int("status", httpErr.StatusCode),
				zap.String("body", httpErr.Body),
				zap.Duration("duration", duration))
			return nil, httpErr
		}
		c.log.Error("HTTP request failed",
			zap.String("method", method),
			zap.String("url", redact(fullURL)),
			zap.Error(err),
			zap.Duration("duration", duration))
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	c.log.Debug("HTTP request successful",
		zap.String("method", method),
		zap.String("url", redact(fullURL)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration))

	return resp, nil
}

// decodeJSON reads a successful response into target and closes the body.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a transient transport failure or a
// retryable HTTP status. Cancellation and other client errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return slices.Contains(retryableStatusCodes, httpErr.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// redact strips the path segment after /v2/, where providers put API keys.
func redact(raw string) string {
	i := strings.Index(raw, "/v2/")
	if i < 0 {
		return raw
	}
	return raw[:i+len("/v2/")] + "***"
}

// LoggingMiddleware creates a middleware that logs requests and responses
func LoggingMiddleware() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return &loggingRoundTripper{next: next}
	}
}

type loggingRoundTripper struct {
	next http.RoundTripper
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	target := redact(req.URL.String())

	logger.Debug("HTTP request started",
		zap.String("method", req.Method),
		zap.String("url", target))

	resp, err := l.next.RoundTrip(req)

	duration := time.Since(start)
	if err != nil {
		logger.Debug("HTTP round trip failed",
			zap.String("method", req.Method),
			zap.String("url", target),
			zap.Error(err),
			zap.Duration("duration", duration))
		return resp, err
	}

	logger.Debug("HTTP response received",
		zap.String("method", req.Method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration))

	return resp, nil
}

// RateLimitMiddleware blocks each round trip until limiter admits it.
func RateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, err
			}
			return next.RoundTrip(req)
		})
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
