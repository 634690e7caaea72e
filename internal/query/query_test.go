package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{40, 30 * time.Second},
		{-1, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	var calls int
	var waits []time.Duration
	got, err := Do(context.Background(), fastPolicy(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	}, func(_ error, wait time.Duration) {
		waits = append(waits, wait)
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int
	_, err := Do(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("down")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls, "one attempt plus three retries")
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad request")
	var calls int
	_, err := Do(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, Permanent(sentinel)
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := Do(ctx, RetryPolicy{MaxRetries: 10, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("down")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCached_ServesFreshValue(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var calls int32
	c := NewCached(func(context.Context) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	}, 30*time.Second, WithClock[int32](clock.Now), WithRetryPolicy[int32](fastPolicy()))

	ctx := context.Background()
	v, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	clock.Advance(10 * time.Second)
	v, _ = c.Get(ctx)
	assert.Equal(t, int32(1), v)

	clock.Advance(25 * time.Second)
	v, _ = c.Get(ctx)
	assert.Equal(t, int32(2), v)

	c.Invalidate()
	v, _ = c.Get(ctx)
	assert.Equal(t, int32(3), v)
}

func TestCached_FailedRefetchKeepsPreviousValue(t *testing.T) {
	fail := false
	c := NewCached(func(context.Context) (string, error) {
		if fail {
			return "", Permanent(errors.New("upstream down"))
		}
		return "first", nil
	}, time.Minute, WithRetryPolicy[string](fastPolicy()))

	ctx := context.Background()
	_, err := c.Get(ctx)
	require.NoError(t, err)

	fail = true
	v, err := c.Refetch(ctx)
	assert.Error(t, err)
	assert.Equal(t, "first", v)
	assert.Error(t, c.Err())

	peek, _, ok := c.Peek()
	assert.True(t, ok)
	assert.Equal(t, "first", peek)
}

func TestCached_ConcurrentGetsShareOneFetch(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	c := NewCached(func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 7, nil
	}, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}()
	}
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestCached_Poll(t *testing.T) {
	var calls int32
	c := NewCached(func(context.Context) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Poll(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done

	v, _, ok := c.Peek()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, v, int32(3))
}
