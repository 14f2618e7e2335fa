// Package audit records session lifecycle events. Auditing is strictly
// best-effort: a failing or saturated sink must never slow down or fail the
// request that produced the event.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"session-sentinel/internal/common/logger"
)

// Event types covering the full session lifecycle.
const (
	EventSessionCreated   = "session_created"
	EventSessionExtended  = "session_extended"
	EventSessionExpired   = "session_expired"
	EventSessionDestroyed = "session_destroyed"
)

// Event is one audit record.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	PrincipalID string    `json:"principal_id,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEvent stamps an event with a fresh id and the given instant.
func NewEvent(eventType, sessionID, principalID string, now time.Time) Event {
	return Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		SessionID:   sessionID,
		PrincipalID: principalID,
		Timestamp:   now,
	}
}

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// LoggerSink writes events to the structured log. The fallback sink when no
// Elasticsearch cluster is configured.
type LoggerSink struct {
	logger logger.Logger
}

func NewLoggerSink(log logger.Logger) *LoggerSink {
	return &LoggerSink{logger: log.WithFields(map[string]interface{}{"component": "audit"})}
}

func (s *LoggerSink) Write(_ context.Context, event Event) error {
	s.logger.Info("session event", map[string]interface{}{
		"event_id":     event.ID,
		"event_type":   event.Type,
		"session_id":   event.SessionID,
		"principal_id": event.PrincipalID,
		"client_ip":    event.ClientIP,
		"reason":       event.Reason,
	})
	return nil
}
