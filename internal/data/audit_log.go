package data

import (
	"context"
	"encoding/json"
	"time"

	"LexGate/internal/model"
	pkgerrors "LexGate/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// AuditLog is the GORM model for gateway_audit_logs table
type AuditLog struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	Service   string    `gorm:"column:service;type:varchar(50);not null;index"`
	EventType string    `gorm:"column:event_type;type:varchar(50);not null"`
	Details   string    `gorm:"column:details;type:json"` // JSON string
	Subject   string    `gorm:"column:subject;type:varchar(100);default:'';not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "gateway_audit_logs"
}

// AuditLoggerImpl implements biz.AuditLogger interface
type AuditLoggerImpl struct {
	db      *gorm.DB
	logChan chan *AuditLog
	logger  *log.Helper
}

// NewAuditLogger creates a new audit logger with async channel
func NewAuditLogger(d *Data, logger log.Logger) *AuditLoggerImpl {
	al := &AuditLoggerImpl{
		db:      d.db,
		logChan: make(chan *AuditLog, 1000), // Buffer size 1000 to prevent blocking
		logger:  log.NewHelper(logger),
	}

	// Start background goroutine for async logging
	go al.start()

	return al
}

// start processes audit log events from channel
func (a *AuditLoggerImpl) start() {
	for event := range a.logChan {
		ctx := context.Background()
		if err := a.db.WithContext(ctx).Create(event).Error; err != nil {
			dbErr := pkgerrors.ClassifyDBError(err)
			a.logger.Errorw("failed to write audit log",
				"service", event.Service,
				"event_type", event.EventType,
				"error_type", dbErr.Type,
				"error", err)
		} else {
			a.logger.Debugw("audit log written",
				"service", event.Service,
				"event_type", event.EventType)
		}
	}
}

// enqueue sends an event to the channel without blocking the caller.
func (a *AuditLoggerImpl) enqueue(event *AuditLog) {
	select {
	case a.logChan <- event:
		// Successfully queued
	default:
		a.logger.Warnw("audit log channel full, dropping event",
			"service", event.Service,
			"event_type", event.EventType)
	}
}

// marshalDetails serializes event details, logging and returning "" on failure.
func (a *AuditLoggerImpl) marshalDetails(details map[string]interface{}) string {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		a.logger.Errorw("failed to marshal audit log details", "error", err)
		return ""
	}
	return string(detailsJSON)
}

// LogDispatch logs the outcome of a gateway dispatch
func (a *AuditLoggerImpl) LogDispatch(ctx context.Context, service, operation string, result *model.IntegrationResult) {
	details := map[string]interface{}{
		"operation":   operation,
		"success":     result.Success,
		"status_code": result.StatusCode,
		"attempts":    result.Attempts,
		"duration_ms": result.Duration.Milliseconds(),
	}
	if result.ErrorCode != "" {
		details["error_code"] = result.ErrorCode
	}

	a.enqueue(&AuditLog{
		Service:   service,
		EventType: model.AuditEventDispatch,
		Details:   a.marshalDetails(details),
	})
}

// LogCircuitOpened logs a circuit breaker trip
func (a *AuditLoggerImpl) LogCircuitOpened(ctx context.Context, event *model.CircuitOpenedEvent) {
	details := map[string]interface{}{
		"failure_count":         event.FailureCount,
		"opened_at":             event.OpenedAt.Format(time.RFC3339),
		"reset_timeout_seconds": event.ResetTimeout.Seconds(),
	}

	a.enqueue(&AuditLog{
		Service:   event.Service,
		EventType: model.AuditEventCircuitOpened,
		Details:   a.marshalDetails(details),
	})
}

// LogCircuitClosed logs a circuit breaker recovery
func (a *AuditLoggerImpl) LogCircuitClosed(ctx context.Context, event *model.CircuitClosedEvent) {
	details := map[string]interface{}{
		"closed_at": event.ClosedAt.Format(time.RFC3339),
	}

	a.enqueue(&AuditLog{
		Service:   event.Service,
		EventType: model.AuditEventCircuitClosed,
		Details:   a.marshalDetails(details),
	})
}

// LogCircuitReset logs a manual circuit breaker reset
func (a *AuditLoggerImpl) LogCircuitReset(ctx context.Context, service, subject string) {
	a.enqueue(&AuditLog{
		Service:   service,
		EventType: model.AuditEventCircuitReset,
		Details:   "{}",
		Subject:   subject,
	})
}

// LogWorkflowStarted logs the start of a workflow execution
func (a *AuditLoggerImpl) LogWorkflowStarted(ctx context.Context, exec *model.WorkflowExecution) {
	details := map[string]interface{}{
		"execution_id": exec.ID,
		"workflow_id":  exec.WorkflowID,
		"strategy":     string(exec.Strategy),
	}

	a.enqueue(&AuditLog{
		Service:   "orchestrator",
		EventType: model.AuditEventWorkflowStarted,
		Details:   a.marshalDetails(details),
	})
}

// LogWorkflowFinished logs a workflow execution reaching a terminal status
func (a *AuditLoggerImpl) LogWorkflowFinished(ctx context.Context, exec *model.WorkflowExecution) {
	details := map[string]interface{}{
		"execution_id": exec.ID,
		"workflow_id":  exec.WorkflowID,
		"strategy":     string(exec.Strategy),
		"status":       string(exec.Status),
		"steps":        len(exec.Steps),
	}

	a.enqueue(&AuditLog{
		Service:   "orchestrator",
		EventType: model.AuditEventWorkflowFinished,
		Details:   a.marshalDetails(details),
	})
}

// LogCompensationRun logs a compensation dispatch after a sequential failure
func (a *AuditLoggerImpl) LogCompensationRun(ctx context.Context, executionID, stepName string, success bool) {
	details := map[string]interface{}{
		"execution_id": executionID,
		"step":         stepName,
		"success":      success,
	}

	a.enqueue(&AuditLog{
		Service:   "orchestrator",
		EventType: model.AuditEventCompensationRun,
		Details:   a.marshalDetails(details),
	})
}

// LogWebhookReceived logs an accepted provider notification
func (a *AuditLoggerImpl) LogWebhookReceived(ctx context.Context, service, notificationID string) {
	details := map[string]interface{}{
		"notification_id": notificationID,
	}

	a.enqueue(&AuditLog{
		Service:   service,
		EventType: model.AuditEventWebhookReceived,
		Details:   a.marshalDetails(details),
	})
}

// LogWebhookRejected logs a provider notification that failed verification
func (a *AuditLoggerImpl) LogWebhookRejected(ctx context.Context, service, reason string) {
	details := map[string]interface{}{
		"reason": reason,
	}

	a.enqueue(&AuditLog{
		Service:   service,
		EventType: model.AuditEventWebhookRejected,
		Details:   a.marshalDetails(details),
	})
}

// LogExecutionsExpired logs the maintenance reaper failing stale executions
func (a *AuditLoggerImpl) LogExecutionsExpired(ctx context.Context, count int64, olderThan time.Time) {
	details := map[string]interface{}{
		"count":      count,
		"older_than": olderThan.Format(time.RFC3339),
	}

	a.enqueue(&AuditLog{
		Service:   "orchestrator",
		EventType: model.AuditEventExecutionExpired,
		Details:   a.marshalDetails(details),
	})
}
