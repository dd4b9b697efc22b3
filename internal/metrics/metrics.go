// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Registration conflict detection paths.
const (
	ConflictPrecheck   = "precheck"
	ConflictConstraint = "constraint"
)

// Token rejection reasons.
const (
	RejectMalformed        = "malformed"
	RejectInvalidSignature = "invalid_signature"
	RejectExpired          = "expired"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
// All methods must be safe for concurrent use.
type Recorder interface {
	// HTTP metrics
	IncHTTPRequest()

	// Registration metrics
	IncUserRegistered()
	IncRegistrationConflict(path string) // path: "precheck" or "constraint"

	// Login and token metrics
	IncLoginFailed()
	IncTokenIssued()
	IncTokenRejected(reason string) // reason: "malformed", "invalid_signature", "expired"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
