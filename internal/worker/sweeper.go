package worker

import (
	"context"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/glowforum/imagepipeline/internal/domain"
)

// Sweeper runs the cleanup reconciliation on a fixed interval, independent
// of any pipeline invocation.
type Sweeper struct {
	cleanup  domain.CleanupService
	interval time.Duration
}

func NewSweeper(cleanup domain.CleanupService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{cleanup: cleanup, interval: interval}
}

func (s *Sweeper) Start(ctx context.Context) {
	zlog.Logger.Info().Dur("interval", s.interval).Msg("cleanup sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("cleanup sweeper stopped")
			return
		case <-ticker.C:
			if err := s.cleanup.Sweep(ctx); err != nil {
				zlog.Logger.Error().Err(err).Msg("cleanup sweep failed")
			}
		}
	}
}
