package biz

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"LexGate/internal/connector"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
)

func newTestRetry() *RetryExecutor {
	return NewRetryExecutor(testGatewayConf(), log.NewStdLogger(os.Stdout))
}

func transientErr(msg string) error {
	return &connector.Error{Service: "alipay", Code: "UPSTREAM_ERROR", Message: msg, Transient: true}
}

func permanentErr(msg string) error {
	return &connector.Error{Service: "alipay", Code: "UPSTREAM_REJECTED", Message: msg, Transient: false}
}

func TestRetryExecute_FirstAttemptSucceeds(t *testing.T) {
	e := newTestRetry()

	calls := 0
	attempts, err := e.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetryExecute_SucceedsAfterTransientFailures(t *testing.T) {
	e := newTestRetry()

	// maxAttempts is 3; two transient failures then success.
	calls := 0
	attempts, err := e.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transientErr("be right back")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetryExecute_ExhaustsAttempts(t *testing.T) {
	e := newTestRetry()

	calls := 0
	attempts, err := e.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return transientErr("still down")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetryExecute_PermanentErrorStopsImmediately(t *testing.T) {
	e := newTestRetry()

	calls := 0
	attempts, err := e.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return permanentErr("bad signature")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestRetryExecute_CircuitOpenNotRetried(t *testing.T) {
	e := newTestRetry()

	calls := 0
	_, err := e.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return newCircuitOpenError("alipay", 30*time.Second)
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls, "an open circuit will not recover within one backoff")
}

func TestRetryExecute_ContextCancelStopsRetries(t *testing.T) {
	e := newTestRetry()

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := e.Execute(ctx, "op", func(ctx context.Context) error {
		calls++
		cancel()
		return transientErr("down")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDelay_ExponentialWithCap(t *testing.T) {
	e := newTestRetry()

	// base 1ms, multiplier 2, cap 10ms
	assert.Equal(t, 1*time.Millisecond, e.Delay(1))
	assert.Equal(t, 2*time.Millisecond, e.Delay(2))
	assert.Equal(t, 4*time.Millisecond, e.Delay(3))
	assert.Equal(t, 8*time.Millisecond, e.Delay(4))
	assert.Equal(t, 10*time.Millisecond, e.Delay(5), "delay is capped at maxDelay")
	assert.Equal(t, 10*time.Millisecond, e.Delay(20))
}

func TestIsRetryable_Classification(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(transientErr("x")))
	assert.False(t, IsRetryable(permanentErr("x")))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(errors.New("mystery")))
	assert.False(t, IsRetryable(newCircuitOpenError("alipay", time.Second)))
}
