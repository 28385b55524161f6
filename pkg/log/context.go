package log

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// requestContextKey is a private type for context keys to avoid collisions
type requestContextKey struct{}

// RequestContext carries per-request metadata that middleware attaches
// to the context so downstream log lines can correlate with the request.
type RequestContext struct {
	RequestID string
	// Subject is the authenticated principal (JWT sub), if any.
	Subject string
}

// WithRequestContext returns a context carrying the request metadata.
func WithRequestContext(ctx context.Context, requestID, subject string) context.Context {
	return context.WithValue(ctx, requestContextKey{}, &RequestContext{
		RequestID: requestID,
		Subject:   subject,
	})
}

// GetRequestContext extracts the request metadata from the context.
// Returns a zero-value RequestContext with RequestID "unknown" when absent.
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestContextKey{}).(*RequestContext); ok && rc != nil {
		return rc
	}
	return &RequestContext{RequestID: "unknown"}
}

// GenerateRequestID generates a short random request identifier.
// Falls back to a fixed marker if the system entropy source fails.
func GenerateRequestID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "rid-unavailable"
	}
	return hex.EncodeToString(b[:])
}
