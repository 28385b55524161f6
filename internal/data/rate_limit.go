package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// RateLimitRepo implements biz.RateLimitRepo interface.
// Following Kratos v2 DDD architecture, interface is defined in biz layer.
type RateLimitRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewRateLimitRepo creates a new rate limit repository.
func NewRateLimitRepo(rdb *redis.Client, logger log.Logger) *RateLimitRepo {
	return &RateLimitRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// Increment increments the fixed-window counter for a service/identifier pair.
// Uses Redis INCR with window expiration set on first increment.
// Returns the new count and any error.
func (r *RateLimitRepo) Increment(ctx context.Context, service, identifier string, window time.Duration) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := getRateLimitKey(service, identifier)

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	// Set expiration on first increment so the window starts with the
	// first request, not with key creation time drift.
	if count == 1 {
		if err := r.rdb.Expire(ctx, key, window).Err(); err != nil {
			r.logger.Warnf("Failed to set rate window expiration for %s/%s: %v", service, identifier, err)
			// Don't return error, counter is still incremented
		}
	}

	return count, nil
}

// Count retrieves the current window count for a service/identifier pair.
// Returns 0 if the key doesn't exist.
func (r *RateLimitRepo) Count(ctx context.Context, service, identifier string) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := getRateLimitKey(service, identifier)

	count, err := r.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get rate count: %w", err)
	}

	return count, nil
}

// Reset deletes the current window counter for a service/identifier pair.
func (r *RateLimitRepo) Reset(ctx context.Context, service, identifier string) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := r.rdb.Del(ctx, getRateLimitKey(service, identifier)).Err(); err != nil {
		return fmt.Errorf("failed to reset rate counter: %w", err)
	}

	return nil
}

// getRateLimitKey generates a Redis key for rate limiting.
// Format: rate:{service}:{identifier}
// Example: rate:alipay:firm-42
func getRateLimitKey(service, identifier string) string {
	return fmt.Sprintf("rate:%s:%s", service, identifier)
}
