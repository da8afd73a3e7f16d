package service

import (
	"context"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/metrics"
)

// Retry policy defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 300 * time.Millisecond
	DefaultMaxDelay    = 2400 * time.Millisecond
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy retries a single upstream call with bounded exponential backoff.
// Only failures reported retryable by entity.IsRetryable are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Sleep       SleepFunc
	Logger      port.Logger
}

// NewRetryPolicy returns a policy with the given limits; zero values fall
// back to the defaults.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration, log port.Logger) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		Sleep:       sleepContext,
		Logger:      log,
	}
}

// Delay returns the wait before the retry that follows failed attempt n (0-based).
func (p *RetryPolicy) Delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempts are used up. The last error is returned unchanged.
func (p *RetryPolicy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !entity.IsRetryable(err) || attempt == p.MaxAttempts-1 {
			return err
		}
		delay := p.Delay(attempt)
		metrics.RetryAttempts.WithLabelValues(name).Inc()
		if p.Logger != nil {
			p.Logger.Debug("Retrying upstream call", "operation", name, "attempt", attempt+1, "delay", delay.String(), "error", err)
		}
		sleep := p.Sleep
		if sleep == nil {
			sleep = sleepContext
		}
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

// Retry is Do for calls that return a value.
func Retry[T any](ctx context.Context, p *RetryPolicy, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

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
