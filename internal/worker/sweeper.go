package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/request-engine/internal/config"
	"github.com/spec-kit/request-engine/internal/service"
)

// Sweeper runs the expiration sweep on a fixed interval. Each tick gets its
// own soft deadline; whatever the tick does not finish is picked up by the
// next one, so a slow store never causes overlapping sweeps.
type Sweeper struct {
	service  *service.LifecycleService
	logger   *zap.Logger
	interval time.Duration
	deadline time.Duration
}

// NewSweeper builds the scheduler.
func NewSweeper(lifecycleService *service.LifecycleService, logger *zap.Logger, cfg config.LifecycleConfig) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		service:  lifecycleService,
		logger:   logger,
		interval: cfg.SweepInterval(),
		deadline: cfg.SweepDeadline(),
	}
}

// Run blocks until ctx is canceled, sweeping once per interval. An immediate
// first sweep runs on startup so a restarted instance catches up right away.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("expiration sweeper started",
		zap.Duration("interval", s.interval), zap.Duration("deadline", s.deadline))

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiration sweeper stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	report, err := s.service.RunExpirationSweep(tickCtx, time.Now().UTC())
	if err != nil {
		s.logger.Error("expiration sweep failed", zap.Error(err))
		return
	}
	if report.Failed > 0 {
		s.logger.Warn("expiration sweep completed with failures",
			zap.Int("expired", report.Expired), zap.Int("failed", report.Failed))
	}
}
