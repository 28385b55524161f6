// Package connector holds the per-provider clients behind the gateway:
// Alipay open gateway, WeChat Pay and the court e-filing system. Each
// connector turns a generic integration request into the provider's
// signed wire format and classifies failures as transient or permanent.
package connector

import (
	"context"
	"encoding/json"
	"fmt"

	"LexGate/internal/model"

	"github.com/google/wire"
)

// ProviderSet is connector providers.
var ProviderSet = wire.NewSet(
	NewAlipayConnector,
	NewWechatConnector,
	NewCourtConnector,
	NewRegistry,
)

// Response is a provider reply before gateway post-processing.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Error is a classified connector failure. Transient errors (5xx,
// timeouts, connection resets) are worth retrying; permanent ones
// (4xx, signature rejections) are not.
type Error struct {
	Service   string
	Code      string
	Message   string
	Transient bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Service, e.Message, e.Code)
}

// Retryable reports whether the failed call may succeed on retry.
func (e *Error) Retryable() bool {
	return e.Transient
}

// Connector is a client for one external service.
type Connector interface {
	// Name returns the service name used for routing, rate limiting
	// and circuit breaker state.
	Name() string
	// Call performs one attempt against the provider. Transport-level
	// and provider-level failures come back as *Error.
	Call(ctx context.Context, req *model.IntegrationRequest) (*Response, error)
}

// Registry resolves connectors by service name.
type Registry struct {
	connectors map[string]Connector
}

// NewRegistry creates a registry with all configured connectors.
func NewRegistry(alipay *AlipayConnector, wechat *WechatConnector, court *CourtConnector) *Registry {
	r := &Registry{connectors: make(map[string]Connector)}
	for _, c := range []Connector{alipay, wechat, court} {
		r.connectors[c.Name()] = c
	}
	return r
}

// Get returns the connector for a service name.
func (r *Registry) Get(service string) (Connector, bool) {
	c, ok := r.connectors[service]
	return c, ok
}

// Services returns the registered service names.
func (r *Registry) Services() []string {
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	return names
}
