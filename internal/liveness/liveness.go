// Package liveness periodically marks devices that stopped reporting as offline.
package liveness

import (
	"context"
	"time"

	"go.uber.org/zap"

	"beacon-network-backend/config"
	"beacon-network-backend/internal/metrics"
	"beacon-network-backend/internal/store"
)

// Service runs the offline sweep on a fixed interval.
type Service struct {
	cfg     config.LivenessConfig
	store   store.Store
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time

	onChange func()
}

// NewService creates a sweeper. m may be nil.
func NewService(cfg config.LivenessConfig, s store.Store, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		cfg:     cfg,
		store:   s,
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// OnChange registers fn to run after a sweep marks at least one device
// offline. Response caches hook in here.
func (s *Service) OnChange(fn func()) *Service {
	s.onChange = fn
	return s
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("liveness sweep disabled")
		return
	}
	s.log.Info("starting liveness sweep",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("offline_after", s.cfg.OfflineAfter),
	)

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("liveness sweep shutting down")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SweepOnce marks online devices unseen for longer than OfflineAfter as
// offline and returns how many changed.
func (s *Service) SweepOnce(ctx context.Context) int64 {
	cutoff := s.now().Add(-s.cfg.OfflineAfter)
	n, err := s.store.MarkStaleDevicesOffline(ctx, cutoff)
	if err != nil {
		s.log.Error("liveness sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.log.Info("devices marked offline", zap.Int64("count", n), zap.Time("cutoff", cutoff))
		s.metrics.DevicesMarkedOffline(n)
		if s.onChange != nil {
			s.onChange()
		}
	}
	return n
}
