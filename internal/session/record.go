// Package session implements the authoritative session store and the time
// computations behind the status oracle. Expiry is always derived from
// last activity against the policy; it is never stored as a flag.
package session

import "time"

// Clock supplies the current time. Injected so expiry transitions are
// testable without wall-clock waits.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Record is the authoritative per-session state. One Record per active
// authenticated session; records for the same principal are independent.
type Record struct {
	SessionID      string    `json:"session_id"`
	PrincipalID    string    `json:"principal_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// NewRecord creates a fresh Record with both timestamps set to now.
func NewRecord(sessionID, principalID string, now time.Time) Record {
	return Record{
		SessionID:      sessionID,
		PrincipalID:    principalID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Policy is the deployment-wide inactivity policy shared by all sessions.
type Policy struct {
	InactivityTimeout time.Duration
	WarningThreshold  time.Duration
}

// DefaultPolicy mirrors the configuration defaults: 30 minute rolling
// timeout with a 5 minute warning window.
func DefaultPolicy() Policy {
	return Policy{
		InactivityTimeout: 30 * time.Minute,
		WarningThreshold:  5 * time.Minute,
	}
}

func (p Policy) Validate() error {
	if p.InactivityTimeout <= 0 {
		return errPolicyTimeout
	}
	if p.WarningThreshold <= 0 || p.WarningThreshold >= p.InactivityTimeout {
		return errPolicyWarning
	}
	return nil
}

// Expired reports whether the inactivity window has fully elapsed.
// The boundary counts: elapsed == timeout is expired.
func (r Record) Expired(now time.Time, p Policy) bool {
	return now.Sub(r.LastActivityAt) >= p.InactivityTimeout
}

// Remaining returns the time left before expiry, floored at zero.
func (r Record) Remaining(now time.Time, p Policy) time.Duration {
	remaining := p.InactivityTimeout - now.Sub(r.LastActivityAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Status is the oracle's answer for one session at one instant.
type Status struct {
	Authenticated bool      `json:"authenticated"`
	TimeRemaining int       `json:"time_remaining"`
	ShowWarning   bool      `json:"show_warning"`
	PrincipalID   string    `json:"principal_id,omitempty"`
	LastActivity  time.Time `json:"last_activity"`
}

// StatusOf computes the status oracle output for a record at the given
// instant. ShowWarning holds exactly when remaining <= threshold.
func (p Policy) StatusOf(r Record, now time.Time) Status {
	remaining := int(r.Remaining(now, p) / time.Second)
	return Status{
		Authenticated: true,
		TimeRemaining: remaining,
		ShowWarning:   remaining <= int(p.WarningThreshold/time.Second),
		PrincipalID:   r.PrincipalID,
		LastActivity:  r.LastActivityAt,
	}
}

// ExpiresAt is the instant the session will expire absent further activity.
func (r Record) ExpiresAt(p Policy) time.Time {
	return r.LastActivityAt.Add(p.InactivityTimeout)
}
