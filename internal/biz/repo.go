package biz

import (
	"context"
	"encoding/json"
	"time"

	"LexGate/internal/model"
)

// CircuitStateRepo defines the interface for shared circuit breaker state.
// Following Kratos v2 DDD architecture, interfaces are defined in biz layer.
// Implementation is in data layer (data.CircuitStateRepo).
type CircuitStateRepo interface {
	IncrementFailures(ctx context.Context, service string) (int64, error)
	GetFailures(ctx context.Context, service string) (int64, error)
	ResetFailures(ctx context.Context, service string) error

	TripOpen(ctx context.Context, service string, resetTimeout time.Duration) error
	GetOpenRemaining(ctx context.Context, service string) (time.Duration, bool, error)

	AcquireProbe(ctx context.Context, service string, ttl time.Duration) (bool, error)
	ReleaseProbe(ctx context.Context, service string) error

	GetLastFailureTime(ctx context.Context, service string) (*time.Time, error)
	ListServices(ctx context.Context) ([]string, error)
}

// RateLimitRepo defines the interface for fixed-window rate limiting.
// Implementation is in data layer (data.RateLimitRepo).
type RateLimitRepo interface {
	Increment(ctx context.Context, service, identifier string, window time.Duration) (int64, error)
	Count(ctx context.Context, service, identifier string) (int64, error)
	Reset(ctx context.Context, service, identifier string) error
}

// WorkflowExecutionRepo defines the interface for workflow execution persistence.
// Implementation is in data layer (data.WorkflowExecutionRepo).
type WorkflowExecutionRepo interface {
	Create(ctx context.Context, exec *model.WorkflowExecution) error
	UpdateSteps(ctx context.Context, id string, steps []model.StepResult) error
	Finish(ctx context.Context, id string, status model.ExecutionStatus, steps []model.StepResult, output json.RawMessage) error
	Get(ctx context.Context, id string) (*model.WorkflowExecution, error)
	List(ctx context.Context, limit int) ([]*model.WorkflowExecution, error)
	MarkStaleFailed(ctx context.Context, olderThan time.Time) (int64, error)
}

// WebhookRepo defines the interface for webhook notification deduplication.
// Implementation is in data layer (data.WebhookRepo).
type WebhookRepo interface {
	ClaimNotification(ctx context.Context, service, notificationID string, ttl time.Duration) (bool, error)
	ReleaseNotification(ctx context.Context, service, notificationID string) error
}

// PaymentNotifier pushes verified payment events to downstream consumers.
type PaymentNotifier interface {
	NotifyPaymentConfirmed(ctx context.Context, event *model.PaymentEvent) error
}

// AuditLogger defines the interface for audit logging
type AuditLogger interface {
	LogDispatch(ctx context.Context, service, operation string, result *model.IntegrationResult)
	LogCircuitOpened(ctx context.Context, event *model.CircuitOpenedEvent)
	LogCircuitClosed(ctx context.Context, event *model.CircuitClosedEvent)
	LogCircuitReset(ctx context.Context, service, subject string)
	LogWorkflowStarted(ctx context.Context, exec *model.WorkflowExecution)
	LogWorkflowFinished(ctx context.Context, exec *model.WorkflowExecution)
	LogCompensationRun(ctx context.Context, executionID, stepName string, success bool)
	LogWebhookReceived(ctx context.Context, service, notificationID string)
	LogWebhookRejected(ctx context.Context, service, reason string)
	LogExecutionsExpired(ctx context.Context, count int64, olderThan time.Time)
}
