package segment

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"adserve-engine/pkg/config"
)

// Scheduler enqueues the nightly refresh-all task.
type Scheduler struct {
	svc    *Service
	hour   int
	minute int
}

func NewScheduler(svc *Service, cfg *config.Config) *Scheduler {
	s := &Scheduler{svc: svc, hour: 2}
	if cfg != nil {
		s.hour = cfg.Engine.SegmentRefreshHour
		s.minute = cfg.Engine.SegmentRefreshMinute
	}
	return s
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("segment refresh scheduler started",
		zap.Int("hour", s.hour),
		zap.Int("minute", s.minute),
	)

	for {
		now := time.Now()
		next := nextRunTime(now, s.hour, s.minute)

		select {
		case <-time.After(next.Sub(now)):
			s.runDaily(ctx)
		case <-ctx.Done():
			zap.L().Info("segment refresh scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	start := time.Now()
	if err := s.svc.EnqueueRefreshAll(ctx); err != nil {
		zap.L().Error("enqueue refresh-all failed", zap.Error(err))
		return
	}
	zap.L().Info("refresh-all enqueued", zap.Duration("took", time.Since(start)))
}

func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
