package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Target is what each tick invokes. The engine satisfies it.
type Target interface {
	Sweep(now time.Time)
}

// Sweeper drives the periodic timeout sweep and match loop
type Sweeper struct {
	target   Target
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper creates a new Sweeper
func NewSweeper(target Target, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the tick loop until the context is cancelled
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return

		case now := <-ticker.C:
			s.target.Sweep(now)
		}
	}
}
