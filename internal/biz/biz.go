// Package biz contains business logic layer implementations.
// This layer holds the core business rules and domain models.
package biz

import (
	"LexGate/internal/connector"
	"LexGate/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewRateLimiterUseCase,
	NewCircuitBreakerUsecase,
	NewRetryExecutor,
	NewGatewayUsecase,
	NewOrchestratorUsecase,
	NewWebhookUsecase,
	// Import data layer providers
	data.NewCircuitStateRepo,
	data.NewRateLimitRepo,
	data.NewWorkflowExecutionRepo,
	data.NewWebhookRepo,
	data.NewAuditLogger,
	data.NewNoopPaymentNotifier,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(CircuitStateRepo), new(*data.CircuitStateRepo)),
	wire.Bind(new(RateLimitRepo), new(*data.RateLimitRepo)),
	wire.Bind(new(WorkflowExecutionRepo), new(*data.WorkflowExecutionRepo)),
	wire.Bind(new(WebhookRepo), new(*data.WebhookRepo)),
	wire.Bind(new(AuditLogger), new(*data.AuditLoggerImpl)),
	wire.Bind(new(PaymentNotifier), new(*data.NoopPaymentNotifier)),
	wire.Bind(new(ConnectorRegistry), new(*connector.Registry)),
)
