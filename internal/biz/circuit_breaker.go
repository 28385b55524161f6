package biz

import (
	"context"
	"fmt"
	"time"

	"LexGate/internal/conf"
	"LexGate/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// newCircuitOpenError creates an HTTP 503 error for a fast-failed request.
func newCircuitOpenError(service string, retryAfter time.Duration) error {
	return errors.New(
		503, // HTTP 503 Service Unavailable
		"CIRCUIT_OPEN",
		fmt.Sprintf("circuit breaker open for service %s, retry after %s", service, retryAfter),
	)
}

// IsCircuitOpenError reports whether err is a circuit-open rejection.
func IsCircuitOpenError(err error) bool {
	return errors.Reason(err) == "CIRCUIT_OPEN"
}

// CircuitBreakerUsecase implements a per-service circuit breaker shared
// across gateway instances through Redis.
//
// State is derived, not stored: an open marker with TTL means OPEN; an
// expired marker with the failure count still at threshold means
// HALF_OPEN; otherwise CLOSED. In half-open exactly one caller wins the
// probe slot, everyone else fails fast until the probe settles.
type CircuitBreakerUsecase struct {
	repo         CircuitStateRepo
	audit        AuditLogger
	threshold    int64
	resetTimeout time.Duration
	callTimeout  time.Duration
	logger       *log.Helper
}

// NewCircuitBreakerUsecase creates a new circuit breaker use case.
func NewCircuitBreakerUsecase(c *conf.Gateway, repo CircuitStateRepo, audit AuditLogger, logger log.Logger) *CircuitBreakerUsecase {
	return &CircuitBreakerUsecase{
		repo:         repo,
		audit:        audit,
		threshold:    int64(c.Breaker.FailureThreshold),
		resetTimeout: c.Breaker.ResetTimeout.AsDuration(),
		callTimeout:  c.Breaker.CallTimeout.AsDuration(),
		logger:       log.NewHelper(logger),
	}
}

// Execute runs fn under the breaker for the given service. Open circuits
// fail fast with a 503 before fn is invoked. A single attempt is bounded
// by the configured call timeout; exceeding it counts as a failure.
// Redis degradation: if breaker state cannot be read, the request is
// allowed (graceful degradation).
func (uc *CircuitBreakerUsecase) Execute(ctx context.Context, service string, fn func(ctx context.Context) error) error {
	probe, err := uc.allow(ctx, service)
	if err != nil {
		return err
	}

	callCtx := ctx
	if uc.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, uc.callTimeout)
		defer cancel()
	}

	if err := fn(callCtx); err != nil {
		uc.onFailure(ctx, service, probe)
		return err
	}

	uc.onSuccess(ctx, service, probe)
	return nil
}

// allow decides whether a request may proceed. The returned bool is true
// when this request holds the half-open probe slot.
func (uc *CircuitBreakerUsecase) allow(ctx context.Context, service string) (bool, error) {
	remaining, open, err := uc.repo.GetOpenRemaining(ctx, service)
	if err != nil {
		// Redis failure: log warning and allow request (graceful degradation)
		uc.logger.Warnf("Redis breaker check failed for %s: %v (request allowed)", service, err)
		return false, nil
	}

	if open {
		return false, newCircuitOpenError(service, remaining)
	}

	failures, err := uc.repo.GetFailures(ctx, service)
	if err != nil {
		uc.logger.Warnf("Redis failure count read failed for %s: %v (request allowed)", service, err)
		return false, nil
	}

	if uc.threshold > 0 && failures >= uc.threshold {
		// Open marker expired with the circuit still tripped: half-open.
		// One probe at a time; the slot outlives the call timeout a bit
		// so a crashed prober cannot wedge the circuit.
		acquired, err := uc.repo.AcquireProbe(ctx, service, uc.callTimeout+5*time.Second)
		if err != nil {
			uc.logger.Warnf("Redis probe acquire failed for %s: %v (request allowed)", service, err)
			return false, nil
		}
		if !acquired {
			return false, newCircuitOpenError(service, uc.resetTimeout)
		}

		uc.logger.Infow("circuit half-open, admitting probe request",
			"service", service,
			"failures", failures)
		return true, nil
	}

	return false, nil
}

// onSuccess closes the circuit after a successful call.
func (uc *CircuitBreakerUsecase) onSuccess(ctx context.Context, service string, probe bool) {
	if probe {
		uc.logger.Infow("probe request succeeded, closing circuit",
			"service", service)
		uc.audit.LogCircuitClosed(ctx, &model.CircuitClosedEvent{
			Service:  service,
			ClosedAt: time.Now(),
		})
	}

	if err := uc.repo.ResetFailures(ctx, service); err != nil {
		uc.logger.Warnf("Redis failure reset failed for %s: %v", service, err)
	}
}

// onFailure records a failed call, tripping the circuit at the threshold.
func (uc *CircuitBreakerUsecase) onFailure(ctx context.Context, service string, probe bool) {
	failures, err := uc.repo.IncrementFailures(ctx, service)
	if err != nil {
		uc.logger.Warnf("Redis failure increment failed for %s: %v", service, err)
		return
	}

	if probe {
		// Failed probe re-opens the circuit for a fresh reset window.
		uc.trip(ctx, service, failures)
		if err := uc.repo.ReleaseProbe(ctx, service); err != nil {
			uc.logger.Warnf("Redis probe release failed for %s: %v", service, err)
		}
		return
	}

	if uc.threshold > 0 && failures >= uc.threshold {
		uc.trip(ctx, service, failures)
	}
}

func (uc *CircuitBreakerUsecase) trip(ctx context.Context, service string, failures int64) {
	if err := uc.repo.TripOpen(ctx, service, uc.resetTimeout); err != nil {
		uc.logger.Warnf("Redis circuit trip failed for %s: %v", service, err)
		return
	}

	uc.logger.Warnw("circuit breaker opened",
		"service", service,
		"failures", failures,
		"reset_timeout", uc.resetTimeout)

	uc.audit.LogCircuitOpened(ctx, &model.CircuitOpenedEvent{
		Service:      service,
		FailureCount: int(failures),
		OpenedAt:     time.Now(),
		ResetTimeout: uc.resetTimeout,
	})
}

// State returns a snapshot of the breaker for a service.
func (uc *CircuitBreakerUsecase) State(ctx context.Context, service string) (*model.CircuitState, error) {
	state := &model.CircuitState{
		Service: service,
		State:   model.CircuitClosed,
	}

	failures, err := uc.repo.GetFailures(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("failed to read failure count: %w", err)
	}
	state.FailureCount = int(failures)

	last, err := uc.repo.GetLastFailureTime(ctx, service)
	if err != nil {
		uc.logger.Warnf("failed to read last failure time for %s: %v", service, err)
	} else {
		state.LastFailureTime = last
	}

	remaining, open, err := uc.repo.GetOpenRemaining(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("failed to read open marker: %w", err)
	}

	switch {
	case open:
		state.State = model.CircuitOpen
		next := time.Now().Add(remaining)
		state.NextAttemptTime = &next
	case uc.threshold > 0 && failures >= uc.threshold:
		state.State = model.CircuitHalfOpen
	}

	return state, nil
}

// States returns breaker snapshots for every service that has recorded
// circuit activity.
func (uc *CircuitBreakerUsecase) States(ctx context.Context) ([]*model.CircuitState, error) {
	services, err := uc.repo.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	states := make([]*model.CircuitState, 0, len(services))
	for _, service := range services {
		state, err := uc.State(ctx, service)
		if err != nil {
			uc.logger.Warnf("failed to read circuit state for %s: %v", service, err)
			continue
		}
		states = append(states, state)
	}

	return states, nil
}

// Reset manually closes the circuit for a service. Used by the admin API
// after an upstream incident is resolved.
func (uc *CircuitBreakerUsecase) Reset(ctx context.Context, service, subject string) error {
	if err := uc.repo.ResetFailures(ctx, service); err != nil {
		return fmt.Errorf("failed to reset circuit: %w", err)
	}

	uc.logger.Infow("circuit breaker reset manually",
		"service", service,
		"subject", subject)
	uc.audit.LogCircuitReset(ctx, service, subject)

	return nil
}
