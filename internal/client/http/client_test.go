package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	logger.InitLogger("test")
}

func fastRetry() *RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 2 * time.Millisecond
	return cfg
}

func TestDoRequest_RetriesRetryableStatus(t *testing.T) {
	var calls int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	c := NewHTTPClient(WithBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	var out map[string]string
	err := c.PostJSON(context.Background(), "echo", map[string]int{"n": 1}, &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{`{"n":1}`, `{"n":1}`, `{"n":1}`}, bodies, "body replayed on each attempt")
}

func TestDoRequest_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad address"))
	}))
	defer srv.Close()

	c := NewHTTPClient(WithBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	resp, err := c.Get(context.Background(), "/x")

	assert.Nil(t, resp)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, "bad address", httpErr.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, IsRetryable(err))
}

func TestDoRequest_ExhaustedRetriesKeepStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPClient(WithBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	_, err := c.Get(context.Background(), "/x")

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.True(t, IsRetryable(err))
}

func TestDoRequest_NoRetryConfig(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(WithBaseURL(srv.URL), WithRetryConfig(nil))
	_, err := c.Get(context.Background(), "/x")

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoRequest_HeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs"))
		assert.Equal(t, "/v1/price", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(WithBaseURL(srv.URL+"/"), WithDefaultHeader("X-Api-Key", "key"))
	var out map[string]any
	err := c.GetJSON(context.Background(), "v1/price", &out, WithQueryParam("vs", "usd"), WithBearerToken("tok"))
	require.NoError(t, err)
}

func TestDoRequest_InvalidPathWithoutBaseURL(t *testing.T) {
	c := NewHTTPClient()
	_, err := c.Get(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestRateLimitMiddleware(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	limiter := rate.NewLimiter(rate.Every(20*time.Millisecond), 1)
	c := NewHTTPClient(WithBaseURL(srv.URL), WithMiddleware(LoggingMiddleware()), WithMiddleware(RateLimitMiddleware(limiter)))

	start := time.Now()
	for i := 0; i < 3; i++ {
		var out map[string]any
		require.NoError(t, c.GetJSON(context.Background(), "/", &out))
	}
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"500", &HTTPError{StatusCode: 500}, true},
		{"408", &HTTPError{StatusCode: 408}, true},
		{"wrapped 503", fmt.Errorf("fetch: %w", &HTTPError{StatusCode: 503}), true},
		{"404", &HTTPError{StatusCode: 404}, false},
		{"501", &HTTPError{StatusCode: 501}, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), true},
		{"decode", errors.New("invalid character"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://eth-mainnet.g.alchemy.com/v2/***", redact("https://eth-mainnet.g.alchemy.com/v2/secret"))
	assert.Equal(t, "https://api.coingecko.com/api/v3/simple", redact("https://api.coingecko.com/api/v3/simple"))
}
