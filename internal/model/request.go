package model

import (
	"encoding/json"
	"time"
)

// Service name constants for the registered connectors.
const (
	ServiceAlipay = "alipay"
	ServiceWechat = "wechat"
	ServiceCourt  = "court"
)

// IntegrationRequest describes a single outbound call to an external service.
type IntegrationRequest struct {
	// Service selects the connector (alipay, wechat, court).
	Service string `json:"service"`
	// Operation is the provider-level method, e.g. "alipay.trade.query"
	// or a court filing endpoint name.
	Operation string `json:"operation"`
	// Method is the HTTP method for connectors that map operations onto
	// REST paths; connectors with fixed entry points ignore it.
	Method string `json:"method,omitempty"`
	// Path is the endpoint path for REST-style connectors.
	Path string `json:"path,omitempty"`
	// Identifier keys the rate-limit window; defaults to "default" when
	// empty (e.g. a tenant or matter id).
	Identifier string `json:"identifier,omitempty"`
	// Params are provider-specific string parameters included in the
	// signed payload.
	Params map[string]string `json:"params,omitempty"`
	// Body is the JSON business payload, passed through to the provider.
	Body json.RawMessage `json:"body,omitempty"`
	// Headers are extra HTTP headers set on the outbound request.
	Headers map[string]string `json:"headers,omitempty"`
}

// IntegrationResult is the structured outcome of a gateway dispatch.
// Failures are reported through Success/ErrorCode rather than panics or
// transport errors, so request handlers always get a well-formed reply.
type IntegrationResult struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Error      string          `json:"error,omitempty"`
	// Attempts is how many times the operation was invoked, including
	// the first try.
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// Gateway error codes surfaced in IntegrationResult.ErrorCode.
const (
	ErrCodeUnknownService   = "UNKNOWN_SERVICE"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeCircuitOpen      = "CIRCUIT_OPEN"
	ErrCodeUpstreamError    = "UPSTREAM_ERROR"
	ErrCodeUpstreamTimeout  = "UPSTREAM_TIMEOUT"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeSignatureFailure = "SIGNATURE_FAILURE"
)
