package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"session-sentinel/internal/common/logger"
)

// captureSink records writes, optionally blocking until released.
type captureSink struct {
	mu      sync.Mutex
	events  []Event
	failErr error
	block   chan struct{}
}

func (s *captureSink) Write(_ context.Context, event Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestRecorderDeliversInOrder(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder(sink, 16, logger.NewNoOpLogger())

	now := time.Now().UTC()
	first := NewEvent(EventSessionCreated, "s1", "alice", now)
	second := NewEvent(EventSessionExtended, "s1", "alice", now.Add(time.Minute))
	rec.Record(first)
	rec.Record(second)
	rec.Close()

	events := sink.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
	assert.Zero(t, rec.Dropped())
}

func TestRecorderDropsWhenSaturated(t *testing.T) {
	sink := &captureSink{block: make(chan struct{})}
	rec := NewRecorder(sink, 1, logger.NewNoOpLogger())

	now := time.Now().UTC()
	// First event is picked up by the worker and parks on the sink; the
	// second fills the buffer; everything after must be dropped, not block.
	for i := 0; i < 10; i++ {
		rec.Record(NewEvent(EventSessionCreated, "s1", "alice", now))
	}

	assert.Eventually(t, func() bool { return rec.Dropped() > 0 }, time.Second, 10*time.Millisecond)

	close(sink.block)
	rec.Close()

	delivered := len(sink.snapshot())
	assert.Equal(t, uint64(10), rec.Dropped()+uint64(delivered))
	assert.LessOrEqual(t, delivered, 2)
}

func TestRecorderSurvivesSinkFailures(t *testing.T) {
	sink := &captureSink{failErr: errors.New("cluster red")}
	rec := NewRecorder(sink, 4, logger.NewNoOpLogger())

	rec.Record(NewEvent(EventSessionExpired, "s1", "alice", time.Now().UTC()))
	rec.Close()

	// Close must return even though every write failed.
	assert.Empty(t, sink.snapshot())
}

func TestRecorderCloseIdempotent(t *testing.T) {
	rec := NewRecorder(&captureSink{}, 4, logger.NewNoOpLogger())
	rec.Close()
	rec.Close()
}

func TestLoggerSinkNeverFails(t *testing.T) {
	sink := NewLoggerSink(logger.NewNoOpLogger())
	event := NewEvent(EventSessionDestroyed, "s1", "alice", time.Now().UTC())
	event.Reason = "user_logout"

	assert.NoError(t, sink.Write(context.Background(), event))
}

func TestNewEventStampsIdentity(t *testing.T) {
	now := time.Now().UTC()
	a := NewEvent(EventSessionCreated, "s1", "alice", now)
	b := NewEvent(EventSessionCreated, "s1", "alice", now)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, now, a.Timestamp)
}
