package model

// Audit event type constants
const (
	AuditEventDispatch         = "GATEWAY_DISPATCH"
	AuditEventCircuitOpened    = "CIRCUIT_OPENED"
	AuditEventCircuitClosed    = "CIRCUIT_CLOSED"
	AuditEventCircuitReset     = "CIRCUIT_RESET"
	AuditEventWorkflowStarted  = "WORKFLOW_STARTED"
	AuditEventWorkflowFinished = "WORKFLOW_FINISHED"
	AuditEventWebhookReceived  = "WEBHOOK_RECEIVED"
	AuditEventWebhookRejected  = "WEBHOOK_REJECTED"
	AuditEventCompensationRun  = "COMPENSATION_RUN"
	AuditEventExecutionExpired = "EXECUTION_EXPIRED"
)
