package biz

import (
	"context"
	"fmt"
	"time"

	"LexGate/internal/conf"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// DefaultIdentifier keys the rate-limit window when a request carries
// no tenant or matter identifier.
const DefaultIdentifier = "default"

// RateLimiterUseCase implements fixed-window rate limiting per external
// service and caller identifier, backed by shared Redis counters.
type RateLimiterUseCase struct {
	repo        RateLimitRepo
	maxRequests int64
	window      time.Duration
	logger      *log.Helper
}

// NewRateLimiterUseCase creates a new rate limiter use case.
func NewRateLimiterUseCase(c *conf.Gateway, repo RateLimitRepo, logger log.Logger) *RateLimiterUseCase {
	return &RateLimiterUseCase{
		repo:        repo,
		maxRequests: int64(c.RateLimit.MaxRequests),
		window:      c.RateLimit.Window.AsDuration(),
		logger:      log.NewHelper(logger),
	}
}

// RateLimitExceededError carries retry information for a rejected request.
type RateLimitExceededError struct {
	Service      string
	Identifier   string
	CurrentCount int64
	Limit        int64
	RetryAfter   time.Duration
}

// Error implements the error interface.
func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: service=%s identifier=%s current=%d limit=%d retry_after=%s",
		e.Service, e.Identifier, e.CurrentCount, e.Limit, e.RetryAfter)
}

// newRateLimitExceededError creates an HTTP 429 error for a rejected request.
func newRateLimitExceededError(service, identifier string, current, limit int64, retryAfter time.Duration) error {
	return errors.New(
		429, // HTTP 429 Too Many Requests
		"RATE_LIMIT_EXCEEDED",
		fmt.Sprintf("rate limit exceeded: service=%s identifier=%s current=%d limit=%d retry_after=%s",
			service, identifier, current, limit, retryAfter),
	)
}

// Check admits or rejects a request against the fixed window for the
// service/identifier pair. Exactly maxRequests requests pass per window;
// the window starts with the first request in it.
// Redis degradation: on Redis failure, logs warning and allows request
// (graceful degradation).
func (uc *RateLimiterUseCase) Check(ctx context.Context, service, identifier string) error {
	if uc.maxRequests <= 0 {
		// No limit configured, allow request
		return nil
	}

	if identifier == "" {
		identifier = DefaultIdentifier
	}

	count, err := uc.repo.Increment(ctx, service, identifier, uc.window)
	if err != nil {
		// Redis failure: log warning and allow request (graceful degradation)
		uc.logger.Warnf("Redis rate check failed for %s/%s: %v (request allowed)", service, identifier, err)
		return nil
	}

	if count > uc.maxRequests {
		uc.logger.Warnw("rate limit exceeded",
			"service", service,
			"identifier", identifier,
			"current", count,
			"limit", uc.maxRequests)
		return newRateLimitExceededError(service, identifier, count, uc.maxRequests, uc.window)
	}

	return nil
}

// MaxRequests returns the configured per-window limit.
func (uc *RateLimiterUseCase) MaxRequests() int64 {
	return uc.maxRequests
}

// Usage returns the current window count for a service/identifier pair.
func (uc *RateLimiterUseCase) Usage(ctx context.Context, service, identifier string) (int64, error) {
	if identifier == "" {
		identifier = DefaultIdentifier
	}
	return uc.repo.Count(ctx, service, identifier)
}

// Reset clears the current window for a service/identifier pair.
// Used by the admin API to unblock a caller after a limit change.
func (uc *RateLimiterUseCase) Reset(ctx context.Context, service, identifier string) error {
	if identifier == "" {
		identifier = DefaultIdentifier
	}
	if err := uc.repo.Reset(ctx, service, identifier); err != nil {
		return fmt.Errorf("failed to reset rate window: %w", err)
	}

	uc.logger.Infow("rate limit window reset",
		"service", service,
		"identifier", identifier)

	return nil
}
