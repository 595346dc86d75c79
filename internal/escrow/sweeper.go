package escrow

import (
	"context"
	"log/slog"
	"time"
)

// AutoReleaser is the slice of the escrow service the sweeper drives
type AutoReleaser interface {
	AutoRelease(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically releases held entries whose hold period has elapsed
type Sweeper struct {
	releaser AutoReleaser
	logger   *slog.Logger
	interval time.Duration
}

func NewSweeper(logger *slog.Logger, releaser AutoReleaser, interval time.Duration) *Sweeper {
	return &Sweeper{
		releaser: releaser,
		logger:   logger,
		interval: interval,
	}
}

// Start begins sweeping until context is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting escrow sweeper", "sweep_interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Escrow sweeper stopping due to context cancellation.")
			return
		case <-ticker.C:
			s.logger.Debug("Escrow sweeper tick: scanning for expired holds")
			released, err := s.releaser.AutoRelease(ctx, time.Now().UTC())
			if err != nil {
				s.logger.Error("Error during auto-release sweep", "error", err)
			}
			if released > 0 {
				s.logger.Info("Auto-released expired holds", "count", released)
			}
		}
	}
}
