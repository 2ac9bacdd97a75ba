// Package agent defines the Backend contract and the provisioning service built on it.
package agent

import "context"

// Backend provisions single-use agent jobs on one compute substrate.
//
// # Provisioning contract
//
// The caller drives every backend the same way:
//
//   - Initialize once at startup
//   - IsJobProvisioned for a pending request
//   - StartAgent when the job does not exist yet
//
// Backends hold no lifecycle state. A job is created once and never updated
// or deleted here; monitoring, teardown and retries are the caller's concern.
type Backend interface {
	// Initialize performs one-time environment preparation (e.g. ensuring
	// the target namespace exists). Safe to call again; it may be a no-op.
	Initialize(ctx context.Context) error

	// IsJobProvisioned reports whether the job for requestID exists.
	// A failed backend query is returned as an error, never as false.
	IsJobProvisioned(ctx context.Context, requestID int64) (bool, error)

	// StartAgent creates the job for requestID unconditionally.
	// An existing job with the same name yields an apperrors.ErrConflict error.
	StartAgent(ctx context.Context, requestID int64, pool string) error

	// JobName returns the deterministic backend-native name for requestID.
	JobName(requestID int64) string

	// Kind names the backend variant (aci, kubernetes, docker).
	Kind() string
}

// ReadinessChecker is implemented by backends that can cheaply verify their
// control plane is reachable.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}
