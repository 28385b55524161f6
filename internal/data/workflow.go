package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"LexGate/internal/model"
	"LexGate/pkg/crypto"
	pkgerrors "LexGate/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
)

// ErrExecutionTerminal is returned when an update targets an execution
// that already reached COMPLETED or FAILED.
var ErrExecutionTerminal = errors.New("workflow execution is terminal")

// ErrExecutionNotFound is returned when the execution ID is unknown.
var ErrExecutionNotFound = errors.New("workflow execution not found")

// WorkflowExecution is the GORM model for workflow_executions table.
// Step results are stored as a JSON document; executions are written
// once per step and read mostly by ID, so a relational step table
// buys nothing here.
type WorkflowExecution struct {
	ID         string     `gorm:"primaryKey;column:id;size:64"`
	WorkflowID string     `gorm:"column:workflow_id;size:64;index;not null"`
	Name       string     `gorm:"column:name;size:200;not null"`
	Strategy   string     `gorm:"column:strategy;type:enum('SEQUENTIAL','PARALLEL','FAN_OUT_FAN_IN');not null"`
	Status     string     `gorm:"column:status;type:enum('RUNNING','COMPLETED','FAILED');default:'RUNNING';not null;index"`
	Steps      string     `gorm:"column:steps;type:text"`
	Output     *string    `gorm:"column:output;type:json"`
	StartTime  time.Time  `gorm:"column:start_time;not null"`
	EndTime    *time.Time `gorm:"column:end_time"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (WorkflowExecution) TableName() string {
	return "workflow_executions"
}

// WorkflowExecutionRepo implements biz.WorkflowExecutionRepo interface.
// Terminal executions are cached in an in-process expirable LRU since
// they never change again. Step documents can embed provider request
// parameters, so they are encrypted at rest when a cipher is configured.
type WorkflowExecutionRepo struct {
	db     *gorm.DB
	cipher *crypto.AESCrypto
	cache  *expirable.LRU[string, *model.WorkflowExecution]
	logger *log.Helper
}

// NewWorkflowExecutionRepo creates a new workflow execution repository.
// cipher may be nil, in which case step documents are stored in plaintext.
func NewWorkflowExecutionRepo(db *gorm.DB, cipher *crypto.AESCrypto, logger log.Logger) *WorkflowExecutionRepo {
	return &WorkflowExecutionRepo{
		db:     db,
		cipher: cipher,
		cache:  expirable.NewLRU[string, *model.WorkflowExecution](256, nil, 10*time.Minute),
		logger: log.NewHelper(logger),
	}
}

// Create persists a new RUNNING execution.
func (r *WorkflowExecutionRepo) Create(ctx context.Context, exec *model.WorkflowExecution) error {
	row, err := r.executionToRow(exec)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if pkgerrors.IsDuplicateKeyError(err) {
			return fmt.Errorf("workflow execution %s already exists: %w", exec.ID, err)
		}
		return fmt.Errorf("failed to create workflow execution: %w", err)
	}

	return nil
}

// UpdateSteps replaces the step results of a RUNNING execution.
// The WHERE status='RUNNING' guard keeps terminal executions immutable
// even under concurrent writers.
func (r *WorkflowExecutionRepo) UpdateSteps(ctx context.Context, id string, steps []model.StepResult) error {
	encoded, err := r.encodeSteps(steps)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&WorkflowExecution{}).
		Where("id = ? AND status = ?", id, string(model.ExecutionRunning)).
		Updates(map[string]interface{}{
			"steps":      encoded,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update workflow steps: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return r.classifyMiss(ctx, id)
	}

	return nil
}

// Finish moves a RUNNING execution to a terminal status with its final
// step results and optional aggregated output.
func (r *WorkflowExecutionRepo) Finish(ctx context.Context, id string, status model.ExecutionStatus, steps []model.StepResult, output json.RawMessage) error {
	encoded, err := r.encodeSteps(steps)
	if err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     string(status),
		"steps":      encoded,
		"end_time":   now,
		"updated_at": now,
	}
	if len(output) > 0 {
		out := string(output)
		updates["output"] = &out
	}

	result := r.db.WithContext(ctx).
		Model(&WorkflowExecution{}).
		Where("id = ? AND status = ?", id, string(model.ExecutionRunning)).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to finish workflow execution: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return r.classifyMiss(ctx, id)
	}

	return nil
}

// Get returns an execution by ID, serving terminal executions from the
// in-process cache when possible.
func (r *WorkflowExecutionRepo) Get(ctx context.Context, id string) (*model.WorkflowExecution, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cached, nil
	}

	var row WorkflowExecution
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to get workflow execution: %w", err)
	}

	exec, err := r.rowToExecution(&row)
	if err != nil {
		return nil, err
	}

	// Only terminal executions are safe to cache, they never change.
	if exec.Terminal() {
		r.cache.Add(id, exec)
	}

	return exec, nil
}

// List returns the most recent executions, newest first.
func (r *WorkflowExecutionRepo) List(ctx context.Context, limit int) ([]*model.WorkflowExecution, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var rows []WorkflowExecution
	if err := r.db.WithContext(ctx).
		Order("start_time DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list workflow executions: %w", err)
	}

	execs := make([]*model.WorkflowExecution, 0, len(rows))
	for i := range rows {
		exec, err := r.rowToExecution(&rows[i])
		if err != nil {
			r.logger.Warnw("skipping unreadable workflow execution row",
				"execution_id", rows[i].ID,
				"error", err)
			continue
		}
		execs = append(execs, exec)
	}

	return execs, nil
}

// MarkStaleFailed fails RUNNING executions older than the cutoff.
// Used by the maintenance job to reap executions orphaned by a crash.
// Returns the number of executions marked.
func (r *WorkflowExecutionRepo) MarkStaleFailed(ctx context.Context, olderThan time.Time) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&WorkflowExecution{}).
		Where("status = ? AND start_time < ?", string(model.ExecutionRunning), olderThan).
		Updates(map[string]interface{}{
			"status":     string(model.ExecutionFailed),
			"end_time":   now,
			"updated_at": now,
		})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark stale executions: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// classifyMiss decides whether a zero-row update means the execution is
// missing or already terminal.
func (r *WorkflowExecutionRepo) classifyMiss(ctx context.Context, id string) error {
	var row WorkflowExecution
	if err := r.db.WithContext(ctx).Select("id", "status").Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExecutionNotFound
		}
		return fmt.Errorf("failed to check workflow execution: %w", err)
	}
	return ErrExecutionTerminal
}

// encodeSteps marshals step results and encrypts the document when a
// cipher is configured.
func (r *WorkflowExecutionRepo) encodeSteps(steps []model.StepResult) (string, error) {
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("failed to marshal step results: %w", err)
	}
	if r.cipher == nil {
		return string(stepsJSON), nil
	}

	encrypted, err := r.cipher.Encrypt(string(stepsJSON))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt step results: %w", err)
	}
	return encrypted, nil
}

// decodeSteps reverses encodeSteps. Rows written before encryption was
// enabled are accepted as plaintext JSON.
func (r *WorkflowExecutionRepo) decodeSteps(stored string) ([]model.StepResult, error) {
	doc := stored
	if r.cipher != nil {
		decrypted, err := r.cipher.Decrypt(stored)
		if err == nil {
			doc = decrypted
		}
	}

	var steps []model.StepResult
	if err := json.Unmarshal([]byte(doc), &steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step results: %w", err)
	}
	return steps, nil
}

func (r *WorkflowExecutionRepo) executionToRow(exec *model.WorkflowExecution) (*WorkflowExecution, error) {
	encoded, err := r.encodeSteps(exec.Steps)
	if err != nil {
		return nil, err
	}

	row := &WorkflowExecution{
		ID:         exec.ID,
		WorkflowID: exec.WorkflowID,
		Name:       exec.Name,
		Strategy:   string(exec.Strategy),
		Status:     string(exec.Status),
		Steps:      encoded,
		StartTime:  exec.StartTime,
		EndTime:    exec.EndTime,
	}
	if len(exec.Output) > 0 {
		out := string(exec.Output)
		row.Output = &out
	}

	return row, nil
}

func (r *WorkflowExecutionRepo) rowToExecution(row *WorkflowExecution) (*model.WorkflowExecution, error) {
	exec := &model.WorkflowExecution{
		ID:         row.ID,
		WorkflowID: row.WorkflowID,
		Name:       row.Name,
		Strategy:   model.CoordinationStrategy(row.Strategy),
		Status:     model.ExecutionStatus(row.Status),
		StartTime:  row.StartTime,
		EndTime:    row.EndTime,
	}

	if row.Steps != "" {
		steps, err := r.decodeSteps(row.Steps)
		if err != nil {
			return nil, err
		}
		exec.Steps = steps
	}
	if row.Output != nil {
		exec.Output = json.RawMessage(*row.Output)
	}

	return exec, nil
}
