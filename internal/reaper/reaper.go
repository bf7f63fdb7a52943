package reaper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-commerce-stock/internal/reservation"
)

// Reaper periodically sweeps expired reservations so stock is never held
// forever by an abandoned or stalled checkout. It only deletes reservation
// rows; orders left pending without a webhook stay pending (cancellation is
// an operator decision, not the reaper's).
type Reaper struct {
	Reservations *reservation.Manager
	Interval     time.Duration // keep <= the shortest reservation TTL
	Timeout      time.Duration // per-sweep bound
	Log          zerolog.Logger
}

func New(m *reservation.Manager, interval time.Duration, log zerolog.Logger) *Reaper {
	return &Reaper{Reservations: m, Interval: interval, Timeout: 10 * time.Second, Log: log}
}

// Run blocks until ctx is cancelled. A failed sweep is logged and retried on
// the next tick, never fatal.
func (r *Reaper) Run(ctx context.Context) error {
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.Log.Info().Dur("interval", r.Interval).Msg("reaper started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			r.sweepOnce(ctx, now)
		}
	}
}

func (r *Reaper) sweepOnce(ctx context.Context, now time.Time) {
	sctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	n, err := r.Reservations.Sweep(sctx, now)
	if err != nil {
		r.Log.Warn().Err(err).Msg("sweep failed")
		return
	}
	if n > 0 {
		r.Log.Info().Int64("removed", n).Msg("sweep removed expired reservations")
	}
}
