package metrics

import (
	"sync/atomic"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HTTPRequests                uint64
	UsersRegistered             uint64
	RegistrationConflictsPre    uint64
	RegistrationConflictsUnique uint64
	LoginsFailed                uint64
	TokensIssued                uint64
	TokensRejectedMalformed     uint64
	TokensRejectedSignature     uint64
	TokensRejectedExpired       uint64
}

// InMemoryRecorder stores metrics in lock-free counters.
type InMemoryRecorder struct {
	httpRequests                atomic.Uint64
	usersRegistered             atomic.Uint64
	registrationConflictsPre    atomic.Uint64
	registrationConflictsUnique atomic.Uint64
	loginsFailed                atomic.Uint64
	tokensIssued                atomic.Uint64
	tokensRejectedMalformed     atomic.Uint64
	tokensRejectedSignature     atomic.Uint64
	tokensRejectedExpired       atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		HTTPRequests:                m.httpRequests.Load(),
		UsersRegistered:             m.usersRegistered.Load(),
		RegistrationConflictsPre:    m.registrationConflictsPre.Load(),
		RegistrationConflictsUnique: m.registrationConflictsUnique.Load(),
		LoginsFailed:                m.loginsFailed.Load(),
		TokensIssued:                m.tokensIssued.Load(),
		TokensRejectedMalformed:     m.tokensRejectedMalformed.Load(),
		TokensRejectedSignature:     m.tokensRejectedSignature.Load(),
		TokensRejectedExpired:       m.tokensRejectedExpired.Load(),
	}
}

// IncHTTPRequest increments the request counter.
func (m *InMemoryRecorder) IncHTTPRequest() {
	m.httpRequests.Add(1)
}

// IncUserRegistered increments the registration counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	m.usersRegistered.Add(1)
}

// IncRegistrationConflict increments the conflict counter for the detection path.
func (m *InMemoryRecorder) IncRegistrationConflict(path string) {
	switch path {
	case ConflictPrecheck:
		m.registrationConflictsPre.Add(1)
	case ConflictConstraint:
		m.registrationConflictsUnique.Add(1)
	}
}

// IncLoginFailed increments the failed login counter.
func (m *InMemoryRecorder) IncLoginFailed() {
	m.loginsFailed.Add(1)
}

// IncTokenIssued increments the issued token counter.
func (m *InMemoryRecorder) IncTokenIssued() {
	m.tokensIssued.Add(1)
}

// IncTokenRejected increments the rejected token counter for reason.
func (m *InMemoryRecorder) IncTokenRejected(reason string) {
	switch reason {
	case RejectMalformed:
		m.tokensRejectedMalformed.Add(1)
	case RejectInvalidSignature:
		m.tokensRejectedSignature.Add(1)
	case RejectExpired:
		m.tokensRejectedExpired.Add(1)
	}
}
