// Package retry wraps arbitrary operations with jittered exponential
// backoff, reporting failures through the notification center.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/netdash/uplink/internal/backoff"
	"github.com/netdash/uplink/internal/notify"
)

// DefaultMaxRetries is used when Config.MaxRetries is not positive.
const DefaultMaxRetries = 3

// Config controls a Do call. The zero value retries up to
// DefaultMaxRetries times with the default backoff policy.
type Config struct {
	// MaxRetries is the number of retries after the first attempt, so
	// the operation runs at most MaxRetries+1 times. Non-positive
	// values select DefaultMaxRetries.
	MaxRetries int

	// ShouldRetry decides whether a failed attempt (zero-based index)
	// may be retried. Nil means always retry.
	ShouldRetry func(err error, attempt int) bool

	// OnRetry is invoked with the 1-based retry number before each
	// backoff sleep.
	OnRetry func(retryNumber int, err error)

	// OnExhausted is invoked with the last error once all attempts are
	// spent.
	OnExhausted func(err error)

	// Backoff computes the sleep between attempts. Nil means
	// backoff.Default().
	Backoff *backoff.Policy

	// Notify, when set, receives a generic error notification on
	// exhaustion. Quiet suppresses it without removing the handle.
	Notify *notify.Center
	Quiet  bool

	// StrictEarlyExit returns as soon as ShouldRetry declines, instead
	// of consuming the remaining attempts. The historical behavior
	// (false) keeps invoking the operation without retry callbacks or
	// delays until the attempt budget is spent.
	StrictEarlyExit bool

	// Sleep overrides the delay primitive, mostly for tests. Nil means
	// a context-aware time.After wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Result is the outcome of a Do call. Errors are reported here, never
// panicked or re-thrown.
type Result[T any] struct {
	Success  bool
	Value    T
	Err      error
	Attempts int // 1-based count of operation invocations
}

// Do runs op until it succeeds or the attempt budget is exhausted.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), cfg Config) Result[T] {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(error, int) bool { return true }
	}
	pol := cfg.Backoff
	if pol == nil {
		pol = backoff.Default()
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		value, err := op(ctx)
		if err == nil {
			return Result[T]{Success: true, Value: value, Attempts: attempt + 1}
		}
		lastErr = err

		if attempt < maxRetries {
			if shouldRetry(err, attempt) {
				if cfg.OnRetry != nil {
					cfg.OnRetry(attempt+1, err)
				}
				if err := sleep(ctx, pol.Delay(attempt)); err != nil {
					return Result[T]{Err: err, Attempts: attempt + 1}
				}
			} else if cfg.StrictEarlyExit {
				return Result[T]{Err: lastErr, Attempts: attempt + 1}
			}
			// Historical quirk: a declined retry does not break the
			// loop; remaining attempts run back to back.
		}
	}

	if cfg.OnExhausted != nil {
		cfg.OnExhausted(lastErr)
	}
	if cfg.Notify != nil && !cfg.Quiet {
		cfg.Notify.Add(notify.Input{
			Type:    notify.TypeError,
			Title:   "Operation failed",
			Message: fmt.Sprintf("giving up after %d attempts: %v", maxRetries+1, lastErr),
		})
	}
	return Result[T]{Err: lastErr, Attempts: maxRetries + 1}
}

// sleepCtx waits for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
