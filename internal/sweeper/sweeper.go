// Package sweeper runs the periodic retention sweep. The core's cleanup
// operation is deliberately not self-scheduling; this package is the
// external scheduler that invokes it.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/atcnet/acars-relay/internal/services"
)

// Sweeper invokes the retention cleanup on a fixed interval.
type Sweeper struct {
	Svc      *services.RelayService
	Interval time.Duration
	Log      zerolog.Logger
}

// New constructs a Sweeper for the given service and interval.
func New(svc *services.RelayService, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{Svc: svc, Interval: interval, Log: log}
}

// Run sweeps until ctx is cancelled. A failed sweep is logged and retried on
// the next tick; it never stops the loop.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.Log.Info().Dur("interval", s.Interval).Msg("retention sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.Log.Info().Msg("retention sweeper stopped")
			return
		case <-t.C:
			removed, err := s.Svc.CleanupOldMessages(ctx)
			if err != nil {
				s.Log.Error().Err(err).Msg("retention sweep failed")
				continue
			}
			if removed > 0 {
				s.Log.Info().Int64("removed", removed).Msg("retention sweep")
			}
		}
	}
}
