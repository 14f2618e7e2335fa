package audit

import (
	"context"
	"sync"
	"time"

	"session-sentinel/internal/common/logger"
)

const writeTimeout = 5 * time.Second

// Recorder decouples request handling from sink latency. Record never
// blocks; events are queued and drained by a single background worker.
type Recorder struct {
	sink   Sink
	events chan Event
	logger logger.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	dropped   uint64
	mu        sync.Mutex
}

func NewRecorder(sink Sink, bufferSize int, log logger.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	r := &Recorder{
		sink:   sink,
		events: make(chan Event, bufferSize),
		logger: log.WithFields(map[string]interface{}{"component": "audit-recorder"}),
	}

	r.wg.Add(1)
	go r.drain()

	return r
}

// Record queues an event. When the buffer is full the event is dropped and
// counted; the caller's request is never delayed.
func (r *Recorder) Record(event Event) {
	select {
	case r.events <- event:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()
		r.logger.Warn("audit buffer full, event dropped", map[string]interface{}{
			"event_type":    event.Type,
			"session_id":    event.SessionID,
			"total_dropped": dropped,
		})
	}
}

// Dropped reports how many events have been discarded so far.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting events and flushes everything already queued.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.events)
		r.wg.Wait()
	})
}

func (r *Recorder) drain() {
	defer r.wg.Done()

	for event := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.sink.Write(ctx, event); err != nil {
			r.logger.Warn("audit sink write failed", map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
				"error":      err.Error(),
			})
		}
		cancel()
	}
}
