package query

import (
	"context"
	"sync"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads a fresh value.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Cached serves a value until it is older than the stale time, then refetches it.
// Concurrent refetches share one call. A failed refetch keeps the previous value.
type Cached[T any] struct {
	fetch     Fetcher[T]
	staleTime time.Duration
	policy    RetryPolicy
	now       func() time.Time
	log       *zap.Logger

	group singleflight.Group

	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	has       bool
	lastErr   error
}

// CachedOption configures a Cached.
type CachedOption[T any] func(*Cached[T])

func WithRetryPolicy[T any](p RetryPolicy) CachedOption[T] {
	return func(c *Cached[T]) { c.policy = p }
}

func WithClock[T any](now func() time.Time) CachedOption[T] {
	return func(c *Cached[T]) { c.now = now }
}

func WithLogger[T any](l *zap.Logger) CachedOption[T] {
	return func(c *Cached[T]) { c.log = l }
}

// NewCached wraps fetch with a staleTime cache.
func NewCached[T any](fetch Fetcher[T], staleTime time.Duration, opts ...CachedOption[T]) *Cached[T] {
	c := &Cached[T]{
		fetch:     fetch,
		staleTime: staleTime,
		policy:    DefaultRetryPolicy(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrGlobal(c.log, "query")
	return c
}

// Get returns the cached value while fresh and refetches otherwise.
func (c *Cached[T]) Get(ctx context.Context) (T, error) {
	c.mu.RLock()
	fresh := c.has && c.now().Sub(c.fetchedAt) < c.staleTime
	v := c.value
	c.mu.RUnlock()
	if fresh {
		return v, nil
	}
	return c.Refetch(ctx)
}

// Refetch ignores freshness and loads a new value.
func (c *Cached[T]) Refetch(ctx context.Context) (T, error) {
	res, err, _ := c.group.Do("fetch", func() (any, error) {
		v, err := Do(ctx, c.policy, c.fetch, func(err error, wait time.Duration) {
			c.log.Debug("Retrying fetch", zap.Error(err), zap.Duration("wait", wait))
		})

		c.mu.Lock()
		defer c.mu.Unlock()
		c.lastErr = err
		if err != nil {
			return c.value, err
		}
		c.value = v
		c.fetchedAt = c.now()
		c.has = true
		return v, nil
	})
	v, _ := res.(T)
	return v, err
}

// Peek returns the cached value without fetching.
func (c *Cached[T]) Peek() (value T, fetchedAt time.Time, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.fetchedAt, c.has
}

// Err is the error of the most recent fetch, nil after a success.
func (c *Cached[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Invalidate marks the value stale so the next Get refetches.
func (c *Cached[T]) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

// Poll refetches every interval until ctx is done.
func (c *Cached[T]) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Refetch(ctx); err != nil && ctx.Err() == nil {
				c.log.Warn("Background refetch failed", zap.Error(err))
			}
		}
	}
}
