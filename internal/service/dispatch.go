package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"LexGate/internal/biz"
	"LexGate/internal/model"
	pkglog "LexGate/pkg/log"
)

// DispatchService exposes single-call dispatch through the gateway.
type DispatchService struct {
	uc     *biz.GatewayUsecase
	logger *log.Helper
}

// NewDispatchService creates a dispatch service.
func NewDispatchService(uc *biz.GatewayUsecase, logger log.Logger) *DispatchService {
	return &DispatchService{
		uc:     uc,
		logger: log.NewHelper(logger),
	}
}

// Dispatch routes one integration request to its connector. The reply is
// always well-formed; failures are reported via success/error_code.
func (s *DispatchService) Dispatch(ctx context.Context, req *model.IntegrationRequest) (*model.IntegrationResult, error) {
	rc := pkglog.GetRequestContext(ctx)
	s.logger.WithContext(ctx).Infow(
		"msg", "Dispatch called",
		"request_id", rc.RequestID,
		"service", req.Service,
		"operation", req.Operation,
	)
	return s.uc.Dispatch(ctx, req), nil
}
