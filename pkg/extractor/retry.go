package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/coursesched/internal/logger"
)

// RetryPolicy is an exponential backoff schedule.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Multiplier  float64
	Max         time.Duration
}

// DefaultRetryPolicy returns three attempts waiting 4s then 8s, capped at 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Initial:     4 * time.Second,
		Multiplier:  2,
		Max:         60 * time.Second,
	}
}

// Delay returns the wait before retry n (n >= 1).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := float64(p.Initial)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
		if p.Max > 0 && d >= float64(p.Max) {
			return p.Max
		}
	}
	if p.Max > 0 && time.Duration(d) > p.Max {
		return p.Max
	}
	return time.Duration(d)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryHook is called before each retry with the error that caused it.
type RetryHook func(provider string, attempt int, delay time.Duration, err error)

// Retrying repeats a failed extraction according to a RetryPolicy.
type Retrying struct {
	inner  Extractor
	policy RetryPolicy
	sleep  SleepFunc
	hook   RetryHook
}

// RetryOption configures Retrying.
type RetryOption func(*Retrying)

// WithSleep replaces the wait between attempts, mainly for tests.
func WithSleep(fn SleepFunc) RetryOption {
	return func(r *Retrying) { r.sleep = fn }
}

// WithRetryHook registers a callback invoked before each retry.
func WithRetryHook(fn RetryHook) RetryOption {
	return func(r *Retrying) { r.hook = fn }
}

// NewRetrying wraps inner with policy.
func NewRetrying(inner Extractor, policy RetryPolicy, opts ...RetryOption) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	r := &Retrying{inner: inner, policy: policy, sleep: sleepContext}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extract calls the wrapped extractor until it succeeds, returns a
// non-retryable error or the attempts run out. The last error is returned
// wrapped in ErrRetriesExhausted.
func (r *Retrying) Extract(ctx context.Context, sections []string) (*Result, error) {
	var lastErr error
	var elapsed time.Duration

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.policy.Delay(attempt - 1)
			if r.hook != nil {
				r.hook(r.inner.Name(), attempt, delay, lastErr)
			}
			logger.Warn("extraction failed, retrying",
				"provider", r.inner.Name(),
				"attempt", attempt-1,
				"max_attempts", r.policy.MaxAttempts,
				"delay", delay,
				"error", lastErr)
			if err := r.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%s: retry wait interrupted: %w", r.inner.Name(), err)
			}
		}

		start := time.Now()
		result, err := r.inner.Extract(WithAttempt(ctx, attempt), sections)
		elapsed += time.Since(start)
		if err == nil {
			result.Attempts = attempt
			result.Duration = elapsed
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil || !IsRetryable(err) {
			logger.Debug("extraction error not retryable", "provider", r.inner.Name(), "error", err)
			return nil, err
		}
	}

	return nil, fmt.Errorf("%s: %w after %d attempts: %w", r.inner.Name(), ErrRetriesExhausted, r.policy.MaxAttempts, lastErr)
}

// Name returns the wrapped extractor's name.
func (r *Retrying) Name() string {
	return r.inner.Name()
}

// Available reports whether the wrapped extractor is available.
func (r *Retrying) Available() bool {
	return r.inner.Available()
}
