package biz

import (
	"context"
	"errors"
	"math"
	"time"

	"LexGate/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// retryable is implemented by errors that know whether the failed
// operation is worth repeating. Connector errors implement it.
type retryable interface {
	Retryable() bool
}

// IsRetryable classifies an error as transient or permanent.
// Errors that carry their own classification win; call timeouts are
// transient; everything else is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// A fast-failed circuit is not going to recover within one backoff.
	if IsCircuitOpenError(err) {
		return false
	}

	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// RetryExecutor runs operations with bounded exponential backoff.
type RetryExecutor struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	multiplier  float64
	logger      *log.Helper
}

// NewRetryExecutor creates a new retry executor from gateway config.
func NewRetryExecutor(c *conf.Gateway, logger log.Logger) *RetryExecutor {
	return &RetryExecutor{
		maxAttempts: int(c.Retry.MaxAttempts),
		baseDelay:   c.Retry.BaseDelay.AsDuration(),
		maxDelay:    c.Retry.MaxDelay.AsDuration(),
		multiplier:  c.Retry.BackoffMultiplier,
		logger:      log.NewHelper(logger),
	}
}

// Execute invokes fn up to maxAttempts times, sleeping between attempts
// with exponential backoff. It stops early on permanent errors or when
// the context ends. Returns the number of attempts made and the last
// error, nil once any attempt succeeds.
func (e *RetryExecutor) Execute(ctx context.Context, name string, fn func(ctx context.Context) error) (int, error) {
	attempts := e.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt - 1, lastErr
			}
			return attempt - 1, err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}

		if !IsRetryable(lastErr) {
			e.logger.Debugw("permanent error, not retrying",
				"operation", name,
				"attempt", attempt,
				"error", lastErr)
			return attempt, lastErr
		}

		if attempt == attempts {
			break
		}

		delay := e.Delay(attempt)
		e.logger.Warnw("transient error, retrying",
			"operation", name,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", lastErr)

		if err := sleepContext(ctx, delay); err != nil {
			return attempt, lastErr
		}
	}

	return attempts, lastErr
}

// Delay returns the backoff before the attempt following attempt n:
// baseDelay * multiplier^(n-1), capped at maxDelay.
func (e *RetryExecutor) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	multiplier := e.multiplier
	if multiplier <= 0 {
		multiplier = 1
	}

	delay := time.Duration(float64(e.baseDelay) * math.Pow(multiplier, float64(attempt-1)))
	if e.maxDelay > 0 && delay > e.maxDelay {
		delay = e.maxDelay
	}

	return delay
}

// sleepContext waits for the delay unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
