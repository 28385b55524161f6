package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LexGate/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// maxConcurrentSteps bounds the goroutines running parallel workflow steps.
const maxConcurrentSteps = 8

// OrchestratorUsecase runs multi-step workflows across external services.
// Sequential workflows stop at the first failed step and compensate the
// completed ones in reverse order; parallel and fan-out workflows run
// every step regardless of individual failures.
type OrchestratorUsecase struct {
	gateway *GatewayUsecase
	repo    WorkflowExecutionRepo
	audit   AuditLogger
	logger  *log.Helper
}

// NewOrchestratorUsecase creates the orchestrator use case.
func NewOrchestratorUsecase(gateway *GatewayUsecase, repo WorkflowExecutionRepo, audit AuditLogger, logger log.Logger) *OrchestratorUsecase {
	return &OrchestratorUsecase{
		gateway: gateway,
		repo:    repo,
		audit:   audit,
		logger:  log.NewHelper(logger),
	}
}

// newInvalidWorkflowError creates an HTTP 400 error for a bad definition.
func newInvalidWorkflowError(msg string) error {
	return kerrors.New(400, "INVALID_WORKFLOW", msg)
}

// Execute runs a workflow definition to completion and returns the
// finished execution. The execution record is persisted before the
// first step runs, so a crash leaves a RUNNING row for the reaper.
func (uc *OrchestratorUsecase) Execute(ctx context.Context, def *model.WorkflowDefinition) (*model.WorkflowExecution, error) {
	if err := validateDefinition(def); err != nil {
		return nil, err
	}

	exec := &model.WorkflowExecution{
		ID:         uuid.NewString(),
		WorkflowID: def.ID,
		Name:       def.Name,
		Strategy:   def.Strategy,
		Status:     model.ExecutionRunning,
		Steps:      make([]model.StepResult, 0, len(def.Steps)),
		StartTime:  time.Now(),
	}

	if err := uc.repo.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to create workflow execution: %w", err)
	}

	uc.audit.LogWorkflowStarted(ctx, exec)
	uc.logger.Infow("workflow started",
		"execution_id", exec.ID,
		"workflow_id", def.ID,
		"strategy", def.Strategy,
		"steps", len(def.Steps))

	var output json.RawMessage
	switch def.Strategy {
	case model.StrategySequential:
		exec.Steps = uc.runSequential(ctx, exec.ID, def.Steps)
	case model.StrategyParallel:
		exec.Steps = uc.runConcurrent(ctx, def.Steps)
	case model.StrategyFanOutFanIn:
		exec.Steps = uc.runConcurrent(ctx, def.Steps)
		output = aggregateOutput(exec.Steps)
	}

	exec.Status = finalStatus(exec.Steps)
	if exec.Status == model.ExecutionCompleted {
		exec.Output = output
	}
	now := time.Now()
	exec.EndTime = &now

	if err := uc.repo.Finish(ctx, exec.ID, exec.Status, exec.Steps, exec.Output); err != nil {
		uc.logger.Errorw("failed to persist workflow result",
			"execution_id", exec.ID,
			"error", err)
	}

	uc.audit.LogWorkflowFinished(ctx, exec)
	uc.logger.Infow("workflow finished",
		"execution_id", exec.ID,
		"status", exec.Status,
		"duration", now.Sub(exec.StartTime))

	return exec, nil
}

// runSequential executes steps in order, stopping at the first failure.
// Completed steps are then compensated newest-first, best effort.
func (uc *OrchestratorUsecase) runSequential(ctx context.Context, executionID string, steps []model.StepDefinition) []model.StepResult {
	results := make([]model.StepResult, 0, len(steps))

	failedAt := -1
	for i, step := range steps {
		if failedAt >= 0 {
			results = append(results, model.StepResult{
				Name:   step.Name,
				Status: model.StepSkipped,
			})
			continue
		}

		result := uc.runStep(ctx, step)
		results = append(results, result)

		// Persist progress so a crash mid-workflow leaves a readable trail.
		if err := uc.repo.UpdateSteps(ctx, executionID, results); err != nil {
			uc.logger.Warnw("failed to persist step progress",
				"execution_id", executionID,
				"step", step.Name,
				"error", err)
		}

		if result.Status == model.StepFailed {
			failedAt = i
		}
	}

	if failedAt >= 0 {
		uc.compensate(ctx, executionID, steps, results, failedAt)
	}

	return results
}

// compensate dispatches the compensation requests of steps completed
// before the failure, in reverse order. Compensation failures are
// recorded and logged, never retried.
func (uc *OrchestratorUsecase) compensate(ctx context.Context, executionID string, steps []model.StepDefinition, results []model.StepResult, failedAt int) {
	for i := failedAt - 1; i >= 0; i-- {
		if results[i].Status != model.StepCompleted || steps[i].Compensation == nil {
			continue
		}

		uc.logger.Infow("running compensation",
			"execution_id", executionID,
			"step", steps[i].Name)

		res := uc.gateway.Dispatch(ctx, steps[i].Compensation)
		results[i].Compensated = true
		if !res.Success {
			results[i].CompensationError = res.Error
			uc.logger.Errorw("compensation failed",
				"execution_id", executionID,
				"step", steps[i].Name,
				"error_code", res.ErrorCode)
		}

		uc.audit.LogCompensationRun(ctx, executionID, steps[i].Name, res.Success)
	}
}

// runConcurrent executes all steps at once, bounded by a semaphore,
// and returns results in definition order.
func (uc *OrchestratorUsecase) runConcurrent(ctx context.Context, steps []model.StepDefinition) []model.StepResult {
	results := make([]model.StepResult, len(steps))

	sem := make(chan struct{}, maxConcurrentSteps)
	done := make(chan int, len(steps))

	for i := range steps {
		go func(idx int) {
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = uc.runStep(ctx, steps[idx])
			done <- idx
		}(i)
	}

	for range steps {
		<-done
	}

	return results
}

// runStep dispatches one step through the gateway.
func (uc *OrchestratorUsecase) runStep(ctx context.Context, step model.StepDefinition) model.StepResult {
	result := model.StepResult{
		Name:      step.Name,
		StartedAt: time.Now(),
	}

	res := uc.gateway.Dispatch(ctx, step.Request)
	result.CompletedAt = time.Now()
	result.Result = res

	if res.Success {
		result.Status = model.StepCompleted
	} else {
		result.Status = model.StepFailed
		result.Error = res.Error
	}

	return result
}

// GetExecution returns one workflow execution by ID.
func (uc *OrchestratorUsecase) GetExecution(ctx context.Context, id string) (*model.WorkflowExecution, error) {
	return uc.repo.Get(ctx, id)
}

// ListExecutions returns recent workflow executions, newest first.
func (uc *OrchestratorUsecase) ListExecutions(ctx context.Context, limit int) ([]*model.WorkflowExecution, error) {
	return uc.repo.List(ctx, limit)
}

// ExpireStale fails RUNNING executions older than maxAge. Called by the
// maintenance job to reap executions orphaned by a crash.
func (uc *OrchestratorUsecase) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)

	count, err := uc.repo.MarkStaleFailed(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale executions: %w", err)
	}

	if count > 0 {
		uc.logger.Warnw("expired stale workflow executions",
			"count", count,
			"older_than", cutoff)
		uc.audit.LogExecutionsExpired(ctx, count, cutoff)
	}

	return count, nil
}

func validateDefinition(def *model.WorkflowDefinition) error {
	if def == nil || len(def.Steps) == 0 {
		return newInvalidWorkflowError("workflow must have at least one step")
	}

	switch def.Strategy {
	case model.StrategySequential, model.StrategyParallel, model.StrategyFanOutFanIn:
	default:
		return newInvalidWorkflowError(fmt.Sprintf("unknown coordination strategy: %s", def.Strategy))
	}

	seen := make(map[string]struct{}, len(def.Steps))
	for i, step := range def.Steps {
		if step.Name == "" {
			return newInvalidWorkflowError(fmt.Sprintf("step %d has no name", i))
		}
		if _, dup := seen[step.Name]; dup {
			return newInvalidWorkflowError("duplicate step name: " + step.Name)
		}
		seen[step.Name] = struct{}{}

		if step.Request == nil {
			return newInvalidWorkflowError("step has no request: " + step.Name)
		}
		if step.Compensation != nil && def.Strategy != model.StrategySequential {
			return newInvalidWorkflowError("compensation is only supported for sequential workflows: " + step.Name)
		}
	}

	return nil
}

// aggregateOutput combines the bodies of completed steps into one
// document keyed by step name.
func aggregateOutput(results []model.StepResult) json.RawMessage {
	combined := make(map[string]json.RawMessage, len(results))
	for _, r := range results {
		if r.Status != model.StepCompleted || r.Result == nil {
			continue
		}
		body := r.Result.Body
		if len(body) == 0 {
			body = json.RawMessage("null")
		}
		combined[r.Name] = body
	}

	out, err := json.Marshal(combined)
	if err != nil {
		return nil
	}
	return out
}

// finalStatus derives the execution status from its step results.
func finalStatus(results []model.StepResult) model.ExecutionStatus {
	for _, r := range results {
		if r.Status != model.StepCompleted {
			return model.ExecutionFailed
		}
	}
	return model.ExecutionCompleted
}
