package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"LexGate/internal/biz"
	"LexGate/internal/model"
	pkglog "LexGate/pkg/log"
)

// WorkflowService exposes multi-step workflow orchestration.
type WorkflowService struct {
	uc     *biz.OrchestratorUsecase
	logger *log.Helper
}

// NewWorkflowService creates a workflow service.
func NewWorkflowService(uc *biz.OrchestratorUsecase, logger log.Logger) *WorkflowService {
	return &WorkflowService{
		uc:     uc,
		logger: log.NewHelper(logger),
	}
}

// ExecuteWorkflowReply wraps the terminal execution record.
type ExecuteWorkflowReply struct {
	Execution *model.WorkflowExecution `json:"execution"`
}

// ExecuteWorkflow runs a workflow definition to completion and returns
// the terminal execution record.
func (s *WorkflowService) ExecuteWorkflow(ctx context.Context, def *model.WorkflowDefinition) (*ExecuteWorkflowReply, error) {
	rc := pkglog.GetRequestContext(ctx)
	s.logger.WithContext(ctx).Infow(
		"msg", "ExecuteWorkflow called",
		"request_id", rc.RequestID,
		"workflow_id", def.ID,
		"workflow_name", def.Name,
		"strategy", def.Strategy,
		"steps", len(def.Steps),
	)

	execution, err := s.uc.Execute(ctx, def)
	if err != nil {
		return nil, err
	}
	return &ExecuteWorkflowReply{Execution: execution}, nil
}

// GetExecution looks up one execution by id.
func (s *WorkflowService) GetExecution(ctx context.Context, id string) (*model.WorkflowExecution, error) {
	s.logger.WithContext(ctx).Infow(
		"msg", "GetExecution called",
		"execution_id", id,
	)
	return s.uc.GetExecution(ctx, id)
}

// ListExecutionsReply is a page of recent executions.
type ListExecutionsReply struct {
	Executions []*model.WorkflowExecution `json:"executions"`
	Count      int                        `json:"count"`
}

// ListExecutions returns the most recent executions, newest first.
func (s *WorkflowService) ListExecutions(ctx context.Context, limit int) (*ListExecutionsReply, error) {
	executions, err := s.uc.ListExecutions(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &ListExecutionsReply{Executions: executions, Count: len(executions)}, nil
}
