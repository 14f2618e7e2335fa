package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id has no backing record. Callers
// translate it to the SESSION_NOT_FOUND / SESSION_EXPIRED taxonomy at the
// HTTP boundary.
var ErrNotFound = errors.New("session: record not found")

var (
	errPolicyTimeout = errors.New("session: inactivity timeout must be positive")
	errPolicyWarning = errors.New("session: warning threshold must be positive and below the timeout")
)

// Store is the contract every backend implements. Touch must be safe under
// concurrent calls for the same session id; last-writer-wins is acceptable
// because activity is monotonic and any recent touch is equally valid
// evidence of liveness.
type Store interface {
	// Create registers a fresh record.
	Create(ctx context.Context, rec Record) error

	// Get returns the current record or ErrNotFound.
	Get(ctx context.Context, sessionID string) (Record, error)

	// Touch sets last_activity_at to now, never moving it backwards.
	// Returns ErrNotFound when the record is gone.
	Touch(ctx context.Context, sessionID string, now time.Time) error

	// Destroy removes the record. Idempotent: destroying a missing
	// session is not an error and never affects other sessions.
	Destroy(ctx context.Context, sessionID string) error

	// PurgeExpired removes records whose last activity predates cutoff
	// and reports how many were swept. Purging is garbage collection
	// only; correctness never depends on it because expiry is computed.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int, error)
}
