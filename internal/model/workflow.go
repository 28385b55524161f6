package model

import (
	"encoding/json"
	"time"
)

// CoordinationStrategy selects how the orchestrator runs workflow steps.
type CoordinationStrategy string

const (
	// StrategySequential runs steps in order and stops at the first
	// failure, compensating completed steps in reverse order.
	StrategySequential CoordinationStrategy = "SEQUENTIAL"
	// StrategyParallel runs all steps concurrently and collects errors.
	StrategyParallel CoordinationStrategy = "PARALLEL"
	// StrategyFanOutFanIn runs all steps concurrently, then aggregates
	// their outputs into a single combined document.
	StrategyFanOutFanIn CoordinationStrategy = "FAN_OUT_FAN_IN"
)

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
)

// StepStatus is the outcome of a single workflow step.
type StepStatus string

const (
	StepCompleted StepStatus = "COMPLETED"
	StepFailed    StepStatus = "FAILED"
	// StepSkipped marks steps after a sequential failure that never ran.
	StepSkipped StepStatus = "SKIPPED"
)

// WorkflowDefinition describes a multi-step integration workflow.
type WorkflowDefinition struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Strategy CoordinationStrategy `json:"strategy"`
	Steps    []StepDefinition     `json:"steps"`
}

// StepDefinition is one workflow step: the request to dispatch and an
// optional compensating request undoing its effect.
type StepDefinition struct {
	Name    string              `json:"name"`
	Request *IntegrationRequest `json:"request"`
	// Compensation, when set, is dispatched if a later step fails in
	// sequential mode. Best effort: failures are logged, not retried.
	Compensation *IntegrationRequest `json:"compensation,omitempty"`
}

// StepResult records the outcome of one executed step.
type StepResult struct {
	Name        string             `json:"name"`
	Status      StepStatus         `json:"status"`
	Result      *IntegrationResult `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	// Compensated is true once this step's compensation has been
	// dispatched after a downstream failure.
	Compensated       bool   `json:"compensated,omitempty"`
	CompensationError string `json:"compensation_error,omitempty"`
}

// WorkflowExecution is one run of a workflow. It is created RUNNING,
// appended to as steps complete, and immutable once terminal.
type WorkflowExecution struct {
	ID         string               `json:"id"`
	WorkflowID string               `json:"workflow_id"`
	Name       string               `json:"name"`
	Strategy   CoordinationStrategy `json:"strategy"`
	Status     ExecutionStatus      `json:"status"`
	Steps      []StepResult         `json:"steps"`
	// Output holds the aggregated document for FAN_OUT_FAN_IN runs.
	Output    json.RawMessage `json:"output,omitempty"`
	StartTime time.Time       `json:"start_time"`
	EndTime   *time.Time      `json:"end_time,omitempty"`
}

// Terminal reports whether the execution reached a final status.
func (e *WorkflowExecution) Terminal() bool {
	return e.Status == ExecutionCompleted || e.Status == ExecutionFailed
}
