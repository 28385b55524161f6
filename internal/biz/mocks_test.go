package biz

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"LexGate/internal/conf"
	"LexGate/internal/model"

	"github.com/stretchr/testify/mock"
	"google.golang.org/protobuf/types/known/durationpb"
)

// testGatewayConf returns gateway defaults used across biz tests.
func testGatewayConf() *conf.Gateway {
	return &conf.Gateway{
		Breaker: &conf.Gateway_Breaker{
			FailureThreshold: 3,
			ResetTimeout:     durationpb.New(30 * time.Second),
			CallTimeout:      durationpb.New(5 * time.Second),
		},
		RateLimit: &conf.Gateway_RateLimit{
			MaxRequests: 5,
			Window:      durationpb.New(time.Minute),
		},
		Retry: &conf.Gateway_Retry{
			MaxAttempts:       3,
			BaseDelay:         durationpb.New(time.Millisecond),
			MaxDelay:          durationpb.New(10 * time.Millisecond),
			BackoffMultiplier: 2.0,
		},
	}
}

// MockCircuitStateRepo is a mock implementation of CircuitStateRepo for testing.
type MockCircuitStateRepo struct {
	mock.Mock
}

func (m *MockCircuitStateRepo) IncrementFailures(ctx context.Context, service string) (int64, error) {
	args := m.Called(ctx, service)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCircuitStateRepo) GetFailures(ctx context.Context, service string) (int64, error) {
	args := m.Called(ctx, service)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCircuitStateRepo) ResetFailures(ctx context.Context, service string) error {
	args := m.Called(ctx, service)
	return args.Error(0)
}

func (m *MockCircuitStateRepo) TripOpen(ctx context.Context, service string, resetTimeout time.Duration) error {
	args := m.Called(ctx, service, resetTimeout)
	return args.Error(0)
}

func (m *MockCircuitStateRepo) GetOpenRemaining(ctx context.Context, service string) (time.Duration, bool, error) {
	args := m.Called(ctx, service)
	return args.Get(0).(time.Duration), args.Bool(1), args.Error(2)
}

func (m *MockCircuitStateRepo) AcquireProbe(ctx context.Context, service string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, service, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockCircuitStateRepo) ReleaseProbe(ctx context.Context, service string) error {
	args := m.Called(ctx, service)
	return args.Error(0)
}

func (m *MockCircuitStateRepo) GetLastFailureTime(ctx context.Context, service string) (*time.Time, error) {
	args := m.Called(ctx, service)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockCircuitStateRepo) ListServices(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockRateLimitRepo is a mock implementation of RateLimitRepo for testing.
type MockRateLimitRepo struct {
	mock.Mock
}

func (m *MockRateLimitRepo) Increment(ctx context.Context, service, identifier string, window time.Duration) (int64, error) {
	args := m.Called(ctx, service, identifier, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRateLimitRepo) Count(ctx context.Context, service, identifier string) (int64, error) {
	args := m.Called(ctx, service, identifier)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRateLimitRepo) Reset(ctx context.Context, service, identifier string) error {
	args := m.Called(ctx, service, identifier)
	return args.Error(0)
}

// MockWebhookRepo is a mock implementation of WebhookRepo for testing.
type MockWebhookRepo struct {
	mock.Mock
}

func (m *MockWebhookRepo) ClaimNotification(ctx context.Context, service, notificationID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, service, notificationID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookRepo) ReleaseNotification(ctx context.Context, service, notificationID string) error {
	args := m.Called(ctx, service, notificationID)
	return args.Error(0)
}

var (
	errTestNotFound = errors.New("execution not found")
	errTestTerminal = errors.New("execution terminal")
)

// memoryExecutionRepo is an in-memory WorkflowExecutionRepo for
// orchestrator tests.
type memoryExecutionRepo struct {
	mu    sync.Mutex
	execs map[string]*model.WorkflowExecution
}

func newMemoryExecutionRepo() *memoryExecutionRepo {
	return &memoryExecutionRepo{execs: make(map[string]*model.WorkflowExecution)}
}

func (r *memoryExecutionRepo) Create(ctx context.Context, exec *model.WorkflowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *exec
	r.execs[exec.ID] = &cp
	return nil
}

func (r *memoryExecutionRepo) UpdateSteps(ctx context.Context, id string, steps []model.StepResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.execs[id]
	if !ok {
		return errTestNotFound
	}
	if exec.Terminal() {
		return errTestTerminal
	}
	exec.Steps = append([]model.StepResult(nil), steps...)
	return nil
}

func (r *memoryExecutionRepo) Finish(ctx context.Context, id string, status model.ExecutionStatus, steps []model.StepResult, output json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.execs[id]
	if !ok {
		return errTestNotFound
	}
	if exec.Terminal() {
		return errTestTerminal
	}
	exec.Status = status
	exec.Steps = append([]model.StepResult(nil), steps...)
	exec.Output = output
	now := time.Now()
	exec.EndTime = &now
	return nil
}

func (r *memoryExecutionRepo) Get(ctx context.Context, id string) (*model.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.execs[id]
	if !ok {
		return nil, errTestNotFound
	}
	cp := *exec
	return &cp, nil
}

func (r *memoryExecutionRepo) List(ctx context.Context, limit int) ([]*model.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.WorkflowExecution, 0, len(r.execs))
	for _, exec := range r.execs {
		cp := *exec
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memoryExecutionRepo) MarkStaleFailed(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, exec := range r.execs {
		if exec.Status == model.ExecutionRunning && exec.StartTime.Before(olderThan) {
			exec.Status = model.ExecutionFailed
			now := time.Now()
			exec.EndTime = &now
			count++
		}
	}
	return count, nil
}

// nopAuditLogger discards audit events in tests.
type nopAuditLogger struct{}

func (nopAuditLogger) LogDispatch(ctx context.Context, service, operation string, result *model.IntegrationResult) {
}
func (nopAuditLogger) LogCircuitOpened(ctx context.Context, event *model.CircuitOpenedEvent)   {}
func (nopAuditLogger) LogCircuitClosed(ctx context.Context, event *model.CircuitClosedEvent)   {}
func (nopAuditLogger) LogCircuitReset(ctx context.Context, service, subject string)            {}
func (nopAuditLogger) LogWorkflowStarted(ctx context.Context, exec *model.WorkflowExecution)   {}
func (nopAuditLogger) LogWorkflowFinished(ctx context.Context, exec *model.WorkflowExecution)  {}
func (nopAuditLogger) LogCompensationRun(ctx context.Context, id, step string, success bool)   {}
func (nopAuditLogger) LogWebhookReceived(ctx context.Context, service, notificationID string)  {}
func (nopAuditLogger) LogWebhookRejected(ctx context.Context, service, reason string)          {}
func (nopAuditLogger) LogExecutionsExpired(ctx context.Context, count int64, cutoff time.Time) {}
