package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// CircuitStateRepo implements biz.CircuitStateRepo interface.
// Following Kratos v2 DDD architecture, interface is defined in biz layer.
//
// State is stored per external service in Redis so that every gateway
// instance shares the same view of the circuit:
//
//	circuit:{service}:failures     consecutive failure counter
//	circuit:{service}:open         open marker, TTL = reset timeout
//	circuit:{service}:probe        half-open probe slot (SETNX)
//	circuit:{service}:last_failure unix timestamp of most recent failure
//	circuit:services               registry set of known services
type CircuitStateRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewCircuitStateRepo creates a new circuit state repository.
func NewCircuitStateRepo(rdb *redis.Client, logger log.Logger) *CircuitStateRepo {
	return &CircuitStateRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// IncrementFailures increments the consecutive failure counter for a service
// and records the failure timestamp. Returns the new count.
func (r *CircuitStateRepo) IncrementFailures(ctx context.Context, service string) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := getCircuitKey(service, "failures")

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment failure count: %w", err)
	}

	// Counter self-heals if nothing touches it for a while.
	if count == 1 {
		if err := r.rdb.Expire(ctx, key, 10*time.Minute).Err(); err != nil {
			r.logger.Warnf("Failed to set failure counter expiration for %s: %v", service, err)
		}
	}

	if err := r.rdb.Set(ctx, getCircuitKey(service, "last_failure"), time.Now().Unix(), 10*time.Minute).Err(); err != nil {
		r.logger.Warnw("failed to record last failure time (degraded mode)",
			"service", service,
			"error", err)
	}

	r.registerService(ctx, service)

	return count, nil
}

// GetFailures retrieves the current consecutive failure count for a service.
// Returns 0 if the counter doesn't exist.
func (r *CircuitStateRepo) GetFailures(ctx context.Context, service string) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	count, err := r.rdb.Get(ctx, getCircuitKey(service, "failures")).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get failure count: %w", err)
	}

	return count, nil
}

// ResetFailures clears the failure counter and probe marker for a service.
// Called when a request succeeds, closing the circuit.
func (r *CircuitStateRepo) ResetFailures(ctx context.Context, service string) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	keys := []string{
		getCircuitKey(service, "failures"),
		getCircuitKey(service, "open"),
		getCircuitKey(service, "probe"),
		getCircuitKey(service, "last_failure"),
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to reset circuit state: %w", err)
	}

	return nil
}

// TripOpen sets the open marker with TTL equal to the reset timeout.
// While the marker lives, all requests to the service fail fast.
func (r *CircuitStateRepo) TripOpen(ctx context.Context, service string, resetTimeout time.Duration) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := r.rdb.Set(ctx, getCircuitKey(service, "open"), "1", resetTimeout).Err(); err != nil {
		return fmt.Errorf("failed to set open marker: %w", err)
	}

	// Clear any stale probe slot so half-open starts fresh next window.
	if err := r.rdb.Del(ctx, getCircuitKey(service, "probe")).Err(); err != nil {
		r.logger.Warnw("failed to clear probe marker (degraded mode)",
			"service", service,
			"error", err)
	}

	r.registerService(ctx, service)

	return nil
}

// GetOpenRemaining returns how long the open marker will still live.
// A zero duration with exists=false means the circuit is not open.
func (r *CircuitStateRepo) GetOpenRemaining(ctx context.Context, service string) (time.Duration, bool, error) {
	if r.rdb == nil {
		return 0, false, fmt.Errorf("redis client is nil")
	}

	ttl, err := r.rdb.PTTL(ctx, getCircuitKey(service, "open")).Result()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get open marker TTL: %w", err)
	}

	// PTTL returns a negative duration when the key is missing or has no TTL.
	if ttl <= 0 {
		return 0, false, nil
	}

	return ttl, true, nil
}

// AcquireProbe claims the single half-open probe slot using SETNX (atomic).
// Only the caller that gets true may send a trial request.
func (r *CircuitStateRepo) AcquireProbe(ctx context.Context, service string, ttl time.Duration) (bool, error) {
	if r.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	acquired, err := r.rdb.SetNX(ctx, getCircuitKey(service, "probe"), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire probe slot: %w", err)
	}

	if acquired {
		r.logger.Debugw("half-open probe slot acquired",
			"service", service,
			"ttl", ttl)
	}

	return acquired, nil
}

// ReleaseProbe frees the probe slot so another request may try.
func (r *CircuitStateRepo) ReleaseProbe(ctx context.Context, service string) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := r.rdb.Del(ctx, getCircuitKey(service, "probe")).Err(); err != nil {
		return fmt.Errorf("failed to release probe slot: %w", err)
	}

	return nil
}

// GetLastFailureTime returns the timestamp of the most recent failure.
// Returns nil if no failure has been recorded.
func (r *CircuitStateRepo) GetLastFailureTime(ctx context.Context, service string) (*time.Time, error) {
	if r.rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	timestamp, err := r.rdb.Get(ctx, getCircuitKey(service, "last_failure")).Int64()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last failure time: %w", err)
	}

	t := time.Unix(timestamp, 0)
	return &t, nil
}

// ListServices returns every service that has touched the circuit registry.
func (r *CircuitStateRepo) ListServices(ctx context.Context) ([]string, error) {
	if r.rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	services, err := r.rdb.SMembers(ctx, "circuit:services").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list circuit services: %w", err)
	}

	return services, nil
}

// registerService adds the service to the registry set for reporting.
func (r *CircuitStateRepo) registerService(ctx context.Context, service string) {
	if err := r.rdb.SAdd(ctx, "circuit:services", service).Err(); err != nil {
		r.logger.Warnw("failed to register service in circuit registry (degraded mode)",
			"service", service,
			"error", err)
	}
}

// getCircuitKey generates a Redis key for circuit breaker state.
// Format: circuit:{service}:{field}
// Example: circuit:alipay:failures
func getCircuitKey(service, field string) string {
	return fmt.Sprintf("circuit:%s:%s", service, field)
}
