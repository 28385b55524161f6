package biz

import (
	"context"
	"errors"
	"time"

	"LexGate/internal/connector"
	"LexGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// ConnectorRegistry resolves connectors by service name.
// Implemented by connector.Registry.
type ConnectorRegistry interface {
	Get(service string) (connector.Connector, bool)
	Services() []string
}

// GatewayUsecase is the front door for outbound integration calls.
// Every dispatch passes the rate limiter, then the retry executor
// wrapping the circuit breaker around a single connector attempt.
// Failures come back as a structured result, never as an error, so
// callers always get a well-formed reply.
type GatewayUsecase struct {
	registry ConnectorRegistry
	limiter  *RateLimiterUseCase
	breaker  *CircuitBreakerUsecase
	retry    *RetryExecutor
	audit    AuditLogger
	logger   *log.Helper
}

// NewGatewayUsecase creates the gateway use case.
func NewGatewayUsecase(
	registry ConnectorRegistry,
	limiter *RateLimiterUseCase,
	breaker *CircuitBreakerUsecase,
	retry *RetryExecutor,
	audit AuditLogger,
	logger log.Logger,
) *GatewayUsecase {
	return &GatewayUsecase{
		registry: registry,
		limiter:  limiter,
		breaker:  breaker,
		retry:    retry,
		audit:    audit,
		logger:   log.NewHelper(logger),
	}
}

// Dispatch routes one integration request through the resilience chain.
func (uc *GatewayUsecase) Dispatch(ctx context.Context, req *model.IntegrationRequest) *model.IntegrationResult {
	start := time.Now()

	result := uc.dispatch(ctx, req)
	result.Duration = time.Since(start)

	uc.audit.LogDispatch(ctx, req.Service, req.Operation, result)

	if result.Success {
		uc.logger.Infow("dispatch completed",
			"service", req.Service,
			"operation", req.Operation,
			"attempts", result.Attempts,
			"duration", result.Duration)
	} else {
		uc.logger.Warnw("dispatch failed",
			"service", req.Service,
			"operation", req.Operation,
			"error_code", result.ErrorCode,
			"attempts", result.Attempts,
			"duration", result.Duration)
	}

	return result
}

func (uc *GatewayUsecase) dispatch(ctx context.Context, req *model.IntegrationRequest) *model.IntegrationResult {
	if req.Service == "" {
		return &model.IntegrationResult{
			ErrorCode: model.ErrCodeInvalidRequest,
			Error:     "service is required",
		}
	}

	conn, ok := uc.registry.Get(req.Service)
	if !ok {
		return &model.IntegrationResult{
			ErrorCode: model.ErrCodeUnknownService,
			Error:     "unknown service: " + req.Service,
		}
	}

	if err := uc.limiter.Check(ctx, req.Service, req.Identifier); err != nil {
		return &model.IntegrationResult{
			ErrorCode: model.ErrCodeRateLimited,
			Error:     err.Error(),
		}
	}

	var resp *connector.Response
	attempts, err := uc.retry.Execute(ctx, req.Service+"/"+req.Operation, func(ctx context.Context) error {
		return uc.breaker.Execute(ctx, req.Service, func(callCtx context.Context) error {
			var callErr error
			resp, callErr = conn.Call(callCtx, req)
			return callErr
		})
	})

	if err != nil {
		return &model.IntegrationResult{
			ErrorCode: errorCode(err),
			Error:     err.Error(),
			Attempts:  attempts,
		}
	}

	return &model.IntegrationResult{
		Success:    true,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Attempts:   attempts,
	}
}

// errorCode maps a dispatch error onto the gateway error codes.
func errorCode(err error) string {
	if IsCircuitOpenError(err) {
		return model.ErrCodeCircuitOpen
	}

	var connErr *connector.Error
	if errors.As(err, &connErr) {
		switch connErr.Code {
		case "TIMEOUT":
			return model.ErrCodeUpstreamTimeout
		case "SIGN_FAILED":
			return model.ErrCodeSignatureFailure
		case "INVALID_REQUEST", "NOT_CONFIGURED":
			return model.ErrCodeInvalidRequest
		default:
			return model.ErrCodeUpstreamError
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrCodeUpstreamTimeout
	}

	return model.ErrCodeUpstreamError
}
