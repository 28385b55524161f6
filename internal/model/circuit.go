package model

import "time"

// CircuitBreakerState is one of the three breaker states.
type CircuitBreakerState string

const (
	// CircuitClosed is the normal operating state; calls pass through.
	CircuitClosed CircuitBreakerState = "CLOSED"
	// CircuitOpen rejects calls immediately until the reset timeout elapses.
	CircuitOpen CircuitBreakerState = "OPEN"
	// CircuitHalfOpen admits a single probe call to test recovery.
	CircuitHalfOpen CircuitBreakerState = "HALF_OPEN"
)

// CircuitState is a snapshot of a per-service circuit breaker.
type CircuitState struct {
	Service         string
	State           CircuitBreakerState
	FailureCount    int
	LastFailureTime *time.Time
	// NextAttemptTime is when the breaker will admit a half-open probe;
	// nil unless the breaker is open.
	NextAttemptTime *time.Time
}

// CircuitOpenedEvent records a breaker tripping open.
type CircuitOpenedEvent struct {
	Service      string
	FailureCount int
	OpenedAt     time.Time
	ResetTimeout time.Duration
}

// CircuitClosedEvent records a breaker recovering after a successful probe.
type CircuitClosedEvent struct {
	Service  string
	ClosedAt time.Time
}
