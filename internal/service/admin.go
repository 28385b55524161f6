package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"LexGate/internal/biz"
	"LexGate/internal/model"
	pkglog "LexGate/pkg/log"
)

// AdminService exposes operator endpoints for circuit breakers and
// rate-limit windows.
type AdminService struct {
	breaker *biz.CircuitBreakerUsecase
	limiter *biz.RateLimiterUseCase
	logger  *log.Helper
}

// NewAdminService creates an admin service.
func NewAdminService(breaker *biz.CircuitBreakerUsecase, limiter *biz.RateLimiterUseCase, logger log.Logger) *AdminService {
	return &AdminService{
		breaker: breaker,
		limiter: limiter,
		logger:  log.NewHelper(logger),
	}
}

// GetCircuitState returns the breaker snapshot for one service.
func (s *AdminService) GetCircuitState(ctx context.Context, service string) (*model.CircuitState, error) {
	return s.breaker.State(ctx, service)
}

// ListCircuitStatesReply holds breaker snapshots for every service that
// has recorded at least one failure.
type ListCircuitStatesReply struct {
	States []*model.CircuitState `json:"states"`
}

// ListCircuitStates returns snapshots for all known services.
func (s *AdminService) ListCircuitStates(ctx context.Context) (*ListCircuitStatesReply, error) {
	states, err := s.breaker.States(ctx)
	if err != nil {
		return nil, err
	}
	return &ListCircuitStatesReply{States: states}, nil
}

// ResetCircuit forces a breaker back to CLOSED. The calling operator is
// recorded in the audit trail.
func (s *AdminService) ResetCircuit(ctx context.Context, service string) error {
	rc := pkglog.GetRequestContext(ctx)
	s.logger.WithContext(ctx).Infow(
		"msg", "ResetCircuit called",
		"request_id", rc.RequestID,
		"service", service,
		"subject", rc.Subject,
	)
	return s.breaker.Reset(ctx, service, rc.Subject)
}

// RateUsageReply reports consumption of the current rate-limit window.
type RateUsageReply struct {
	Service    string `json:"service"`
	Identifier string `json:"identifier"`
	Current    int64  `json:"current"`
	Limit      int64  `json:"limit"`
}

// GetRateUsage returns the current window count for a service/identifier.
func (s *AdminService) GetRateUsage(ctx context.Context, service, identifier string) (*RateUsageReply, error) {
	if identifier == "" {
		identifier = biz.DefaultIdentifier
	}
	current, err := s.limiter.Usage(ctx, service, identifier)
	if err != nil {
		return nil, err
	}
	return &RateUsageReply{
		Service:    service,
		Identifier: identifier,
		Current:    current,
		Limit:      s.limiter.MaxRequests(),
	}, nil
}

// ResetRateWindow clears the current rate-limit window.
func (s *AdminService) ResetRateWindow(ctx context.Context, service, identifier string) error {
	rc := pkglog.GetRequestContext(ctx)
	s.logger.WithContext(ctx).Infow(
		"msg", "ResetRateWindow called",
		"request_id", rc.RequestID,
		"service", service,
		"identifier", identifier,
		"subject", rc.Subject,
	)
	if identifier == "" {
		identifier = biz.DefaultIdentifier
	}
	return s.limiter.Reset(ctx, service, identifier)
}
