// Package query holds the fetch policy shared by the data-fetching services:
// bounded exponential retries and a stale-time cache with background refetch.
package query

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy retries a failed fetch up to MaxRetries times, waiting
// min(BaseDelay*2^n, MaxDelay) before retry n.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy is three retries at 1s, 2s and 4s, capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Delay returns the wait before the zero-based retry attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// policyBackOff adapts RetryPolicy to backoff.BackOff without jitter.
type policyBackOff struct {
	policy  RetryPolicy
	attempt int
}

func (b *policyBackOff) NextBackOff() time.Duration {
	d := b.policy.Delay(b.attempt)
	b.attempt++
	return d
}

func (b *policyBackOff) Reset() { b.attempt = 0 }

// BackOff returns a backoff.BackOff that follows p and stops when ctx is done.
func (p RetryPolicy) BackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &policyBackOff{policy: p}
	b = backoff.WithMaxRetries(b, uint64(max(p.MaxRetries, 0)))
	return backoff.WithContext(b, ctx)
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Notify is called before each retry with the error that caused it.
type Notify func(err error, wait time.Duration)

// Do runs fn, retrying transient failures according to p.
func Do[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error), notify ...Notify) (T, error) {
	op := func() (T, error) {
		return fn(ctx)
	}
	var n backoff.Notify
	if len(notify) > 0 && notify[0] != nil {
		n = backoff.Notify(notify[0])
	}
	return backoff.RetryNotifyWithData(op, p.BackOff(ctx), n)
}
