package farhadmarket

import (
	"context"
	"log/slog"
	"time"

	"market_sync/internal/domain"
	"market_sync/internal/event"
)

// Refresher re-fetches a full REST snapshot for every tracked pair and
// feeds it into the tracker inbox, independent of streaming health. The
// depth stream can silently desynchronize; the hourly full re-snapshot is
// the correctness backstop.
type Refresher struct {
	source domain.BookDataSource
	pairs  []string
	inbox  chan<- event.Event
	logger *slog.Logger
	pacing time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewRefresher creates a periodic snapshot refresher.
func NewRefresher(source domain.BookDataSource, pairs []string, inbox chan<- event.Event, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default().With("module", "snapshot_refresher")
	}
	return &Refresher{
		source: source,
		pairs:  pairs,
		inbox:  inbox,
		logger: logger,
		pacing: snapshotPacing,
		now:    time.Now,
	}
}

// Run executes refresh passes until the context is canceled. Pairs are
// fetched sequentially with a fixed pacing delay; a failure for one pair
// is isolated and does not abort the pass for the others.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("Snapshot refresher started", slog.Int("pairs", len(r.pairs)))
	for {
		for _, pair := range r.pairs {
			if err := r.refreshPair(ctx, pair); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Warn("Snapshot fetch failed. Retrying in 5 seconds. Check network connection.",
					slog.String("pair", pair), slog.Any("error", err))
			}
			if !sleepCtx(ctx, r.pacing) {
				return
			}
		}

		delta := nextHourBoundary(r.now()).Sub(r.now())
		if !sleepCtx(ctx, delta) {
			return
		}
	}
}

func (r *Refresher) refreshPair(ctx context.Context, pair string) error {
	snap, err := r.source.FetchSnapshot(ctx, pair)
	if err != nil {
		return err
	}

	ev := event.AcquireBookEvent()
	ev.Type = event.TypeBookSnapshot
	ev.TradingPair = pair
	ev.SequenceID = snap.Timestamp.UnixMilli()
	ev.Ts = snap.Timestamp
	ev.Bids = append(ev.Bids, snap.Bids...)
	ev.Asks = append(ev.Asks, snap.Asks...)

	select {
	case r.inbox <- ev:
		r.logger.Debug("Saved order book snapshot", slog.String("pair", pair))
	case <-ctx.Done():
		event.ReleaseBookEvent(ev)
		return ctx.Err()
	}
	return nil
}

// nextHourBoundary returns the next wall-clock hour after t. Sleeping to a
// boundary rather than a fixed interval keeps the cadence from drifting.
func nextHourBoundary(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}

// sleepCtx sleeps for d unless the context is canceled first. Returns
// false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
