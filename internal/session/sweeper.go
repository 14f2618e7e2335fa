package session

import (
	"context"
	"time"

	"session-sentinel/internal/common/logger"
	"session-sentinel/internal/common/metrics"
)

// Sweeper periodically garbage-collects records whose inactivity window has
// long elapsed. Purely hygienic: expiry is computed, so correctness never
// depends on the sweep having run.
type Sweeper struct {
	store    Store
	policy   Policy
	clock    Clock
	interval time.Duration
	logger   logger.Logger
}

func NewSweeper(store Store, policy Policy, clock Clock, interval time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		policy:   policy,
		clock:    clock,
		interval: interval,
		logger:   log.WithFields(map[string]interface{}{"component": "sweeper"}),
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.policy.InactivityTimeout)

	swept, err := s.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		s.logger.Warn("sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if swept > 0 {
		metrics.SessionsDestroyed.WithLabelValues(metrics.ReasonSwept).Add(float64(swept))
		metrics.SessionsActive.Sub(float64(swept))
		s.logger.Info("swept stale sessions", map[string]interface{}{
			"count":  swept,
			"cutoff": cutoff,
		})
	}
}
