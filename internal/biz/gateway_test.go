package biz

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"LexGate/internal/connector"
	"LexGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// fakeConnector scripts connector responses for gateway tests.
type fakeConnector struct {
	name  string
	calls int
	fn    func(call int, req *model.IntegrationRequest) (*connector.Response, error)
}

func (f *fakeConnector) Name() string { return f.name }

func (f *fakeConnector) Call(ctx context.Context, req *model.IntegrationRequest) (*connector.Response, error) {
	f.calls++
	return f.fn(f.calls, req)
}

// fakeRegistry resolves fake connectors by name.
type fakeRegistry struct {
	connectors map[string]connector.Connector
}

func (r *fakeRegistry) Get(service string) (connector.Connector, bool) {
	c, ok := r.connectors[service]
	return c, ok
}

func (r *fakeRegistry) Services() []string {
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	return names
}

// newTestGateway builds a gateway over scripted connectors with
// permissive breaker and limiter state.
func newTestGateway(conn *fakeConnector) (*GatewayUsecase, *MockRateLimitRepo, *MockCircuitStateRepo) {
	logger := log.NewStdLogger(os.Stdout)
	c := testGatewayConf()

	limitRepo := new(MockRateLimitRepo)
	circuitRepo := new(MockCircuitStateRepo)

	registry := &fakeRegistry{connectors: map[string]connector.Connector{
		conn.name: conn,
	}}

	gateway := NewGatewayUsecase(
		registry,
		NewRateLimiterUseCase(c, limitRepo, logger),
		NewCircuitBreakerUsecase(c, circuitRepo, nopAuditLogger{}, logger),
		NewRetryExecutor(c, logger),
		nopAuditLogger{},
		logger,
	)

	return gateway, limitRepo, circuitRepo
}

func allowAll(limitRepo *MockRateLimitRepo, circuitRepo *MockCircuitStateRepo) {
	limitRepo.On("Increment", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
	circuitRepo.On("GetOpenRemaining", mock.Anything, mock.Anything).Return(time.Duration(0), false, nil)
	circuitRepo.On("GetFailures", mock.Anything, mock.Anything).Return(int64(0), nil)
	circuitRepo.On("ResetFailures", mock.Anything, mock.Anything).Return(nil)
	circuitRepo.On("IncrementFailures", mock.Anything, mock.Anything).Return(int64(1), nil)
}

func TestDispatch_Success(t *testing.T) {
	conn := &fakeConnector{name: "alipay", fn: func(call int, req *model.IntegrationRequest) (*connector.Response, error) {
		return &connector.Response{StatusCode: 200, Body: json.RawMessage(`{"code":"10000"}`)}, nil
	}}
	gateway, limitRepo, circuitRepo := newTestGateway(conn)
	allowAll(limitRepo, circuitRepo)

	result := gateway.Dispatch(context.Background(), &model.IntegrationRequest{
		Service:   "alipay",
		Operation: "alipay.trade.query",
	})

	assert.True(t, result.Success)
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, 1, result.Attempts)
	assert.JSONEq(t, `{"code":"10000"}`, string(result.Body))
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestDispatch_UnknownService(t *testing.T) {
	conn := &fakeConnector{name: "alipay", fn: func(call int, req *model.IntegrationRequest) (*connector.Response, error) {
		return &connector.Response{StatusCode: 200}, nil
	}}
	gateway, _, _ := newTestGateway(conn)

	result := gateway.Dispatch(context.Background(), &model.IntegrationRequest{
		Service: "fax-machine",
	})

	assert.False(t, result.Success)
	assert.Equal(t, model.ErrCodeUnknownService, result.ErrorCode)
	assert.Equal(t, 0, conn.calls)
}

func TestDispatch_RateLimited(t *testing.T) {
	conn := &fakeConnector{name: "alipay", fn: func(call int, req *model.IntegrationRequest) (*connector.Response, error) {
		return &connector.Response{StatusCode: 200}, nil
	}}
	gateway, limitRepo, _ := newTestGateway(conn)

	// Over the limit of 5: rejected before any upstream call.
	limitRepo.On("Increment", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(6), nil)

	result := gateway.Dispatch(context.Background(), &model.IntegrationRequest{
		Service:   "alipay",
		Operation: "alipay.trade.query",
	})

	assert.False(t, result.Success)
	assert.Equal(t, model.ErrCodeRateLimited, result.ErrorCode)
	assert.Equal(t, 0, conn.calls, "rate-limited requests never reach the connector")
}

func TestDispatch_RetriesTransientThenSucceeds(t *testing.T) {
	conn := &fakeConnector{name: "alipay", fn: func(call int, req *model.IntegrationRequest) (*connector.Response, error) {
		if call < 3 {
			return nil, &connector.Error{Service: "alipay", Code: "UPSTREAM_ERROR", Message: "502", Transient: true}
		}
		return &connector.Response{StatusCode: 200, Body: json.RawMessage(`{}`)}, nil
	}}
	gateway, limitRepo, circuitRepo := newTestGateway(conn)
	allowAll(limitRepo, circuitRepo)

	result := gateway.Dispatch(context.Background(), &model.IntegrationRequest{
		Service:   "alipay",
		Operation: "alipay.trade.query",
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, conn.calls)
}

func TestDispatch_PermanentErrorNotRetried(t *testing.T) {
	conn := &fakeConnector{name: "alipay", fn: func(call int, req *model.IntegrationRequest) (*connector.Response, error) {
		return nil, &connector.Error{Service: "alipay", Code: "UPSTREAM_REJECTED", Message: "400", Transient: false}
	}}
	gateway, limitRepo, circuitRepo := newTestGateway(conn)
	allowAll(limitRepo, circuitRepo)

	result := gateway.Dispatch(context.Background(), &model.IntegrationRequest{
		Service:   "alipay",
		Operation: "alipay.trade.query",
	})

	assert.False(t, result.Success)
	assert.Equal(t, model.ErrCodeUpstreamError, result.ErrorCode)
	assert.Equal(t, 1, conn.calls)
}

func TestDispatch_CircuitOpen(t *testing.T) {
	conn := &fakeConnector{name: "wechat", fn: func(call int, req *model.IntegrationRequest) (*connector.Response, error) {
		return &connector.Response{StatusCode: 200}, nil
	}}
	gateway, limitRepo, circuitRepo := newTestGateway(conn)

	limitRepo.On("Increment", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
	circuitRepo.On("GetOpenRemaining", mock.Anything, "wechat").Return(15*time.Second, true, nil)

	result := gateway.Dispatch(context.Background(), &model.IntegrationRequest{
		Service:   "wechat",
		Operation: "/pay/unifiedorder",
	})

	assert.False(t, result.Success)
	assert.Equal(t, model.ErrCodeCircuitOpen, result.ErrorCode)
	assert.Equal(t, 0, conn.calls, "open circuit fails fast without an upstream call")
}

func TestDispatch_TimeoutMapsToUpstreamTimeout(t *testing.T) {
	conn := &fakeConnector{name: "court", fn: func(call int, req *model.IntegrationRequest) (*connector.Response, error) {
		return nil, &connector.Error{Service: "court", Code: "TIMEOUT", Message: "request timed out", Transient: true}
	}}
	gateway, limitRepo, circuitRepo := newTestGateway(conn)
	allowAll(limitRepo, circuitRepo)

	result := gateway.Dispatch(context.Background(), &model.IntegrationRequest{
		Service:   "court",
		Operation: "filings",
	})

	assert.False(t, result.Success)
	assert.Equal(t, model.ErrCodeUpstreamTimeout, result.ErrorCode)
	assert.Equal(t, 3, result.Attempts, "timeouts are retried to exhaustion")
}

func TestDispatch_MissingService(t *testing.T) {
	conn := &fakeConnector{name: "alipay", fn: func(call int, req *model.IntegrationRequest) (*connector.Response, error) {
		return &connector.Response{StatusCode: 200}, nil
	}}
	gateway, _, _ := newTestGateway(conn)

	result := gateway.Dispatch(context.Background(), &model.IntegrationRequest{})

	assert.False(t, result.Success)
	assert.Equal(t, model.ErrCodeInvalidRequest, result.ErrorCode)
}
