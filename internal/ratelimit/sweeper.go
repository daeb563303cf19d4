package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"aegis/pkg/platform/clock"
)

// Sweeper periodically purges expired counters from the limiter's in-memory
// cache. Persisted entries carry their own TTL and expire on read, so the
// sweeper never touches the store.
type Sweeper struct {
	limiter  *Limiter
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *Metrics
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval overrides the sweep interval when greater than zero.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithSweepLogger overrides the logger.
func WithSweepLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSweepClock overrides the clock driving the ticker.
func WithSweepClock(c clock.Clock) SweeperOption {
	return func(s *Sweeper) {
		s.clock = c
	}
}

// WithSweepMetrics sets the metrics recorder.
func WithSweepMetrics(m *Metrics) SweeperOption {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// NewSweeper constructs a sweeper for the given limiter.
func NewSweeper(limiter *Limiter, opts ...SweeperOption) (*Sweeper, error) {
	if limiter == nil {
		return nil, errors.New("limiter is required")
	}
	s := &Sweeper{
		limiter:  limiter,
		interval: 5 * time.Minute,
		clock:    clock.NewSystem(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start runs the sweep periodically until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			s.RunOnce()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep and returns how many entries were purged.
func (s *Sweeper) RunOnce() int {
	start := s.clock.Now()
	purged := s.limiter.PurgeExpired()
	elapsed := s.clock.Now().Sub(start)

	if s.metrics != nil {
		s.metrics.RecordSweep("ok", purged, elapsed.Seconds())
	}
	if purged > 0 {
		s.logger.Debug("rate limit sweep completed", "purged", purged)
	}
	return purged
}
