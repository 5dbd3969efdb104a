package book

import (
	"context"
	"log/slog"
	"sync"

	"market_sync/internal/domain"
	"market_sync/internal/event"
	"market_sync/internal/infra"
)

// TradeListener observes public trades after book application.
type TradeListener func(domain.TradeRecord)

// Tracker is the single consumer of the market-data queue. It applies book
// events to the merge engine in arrival order and fans trades out to
// listeners. It runs in exactly one goroutine; workers and the refresher
// only send to its inbox.
type Tracker struct {
	inbox  chan event.Event
	engine *Engine
	source domain.BookDataSource
	logger *slog.Logger

	mu        sync.RWMutex
	listeners []TradeListener
}

// NewTracker creates a tracker over the given engine. source is used to
// re-prime a book after a detected sequence regression; it may be nil in
// tests.
func NewTracker(inboxSize int, engine *Engine, source domain.BookDataSource, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default().With("module", "book_tracker")
	}
	return &Tracker{
		inbox:  make(chan event.Event, inboxSize),
		engine: engine,
		source: source,
		logger: logger,
	}
}

// Inbox returns the event channel. Workers and the refresher send here.
func (t *Tracker) Inbox() chan<- event.Event {
	return t.inbox
}

// Engine exposes the merge engine for external reads.
func (t *Tracker) Engine() *Engine {
	return t.engine
}

// AddTradeListener registers a listener for public trades.
func (t *Tracker) AddTradeListener(fn TradeListener) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// Run starts the apply loop. This MUST be run in a single goroutine.
func (t *Tracker) Run(ctx context.Context) {
	t.logger.Info("Book tracker started")
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Book tracker stopping...")
			return
		case ev := <-t.inbox:
			t.processEvent(ctx, ev)
		}
	}
}

func (t *Tracker) processEvent(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case *event.BookEvent:
		t.handleBookEvent(ctx, e)
		event.ReleaseBookEvent(e)
	case *event.TradeEvent:
		t.handleTradeEvent(e)
		event.ReleaseTradeEvent(e)
	default:
		t.logger.Warn("Unknown event type", slog.String("type", ev.GetType()))
	}
}

func (t *Tracker) handleBookEvent(ctx context.Context, e *event.BookEvent) {
	switch e.Type {
	case event.TypeBookSnapshot:
		t.engine.ApplySnapshot(e.TradingPair, e.Bids, e.Asks, e.SequenceID, e.Ts)
		infra.GlobalMetrics.RecordSnapshotApplied()

	case event.TypeBookDiff:
		if err := t.engine.ApplyDiff(e.TradingPair, e.Bids, e.Asks, e.SequenceID, e.Ts); err != nil {
			infra.GlobalMetrics.RecordSequenceGap()
			t.logger.Warn("Out-of-sequence depth update, re-priming book",
				slog.String("pair", e.TradingPair),
				slog.Int64("seq", e.SequenceID),
				slog.Any("error", err))
			t.reprime(ctx, e.TradingPair)
		}

	default:
		t.logger.Warn("Book event with unknown type", slog.String("type", e.Type))
	}
}

// reprime fetches a fresh REST snapshot after a consistency fault. A fetch
// failure leaves the book at its last-applied state; the hourly refresher
// remains the backstop.
func (t *Tracker) reprime(ctx context.Context, pair string) {
	if t.source == nil {
		return
	}
	snap, err := t.source.FetchSnapshot(ctx, pair)
	if err != nil {
		t.logger.Warn("Re-priming snapshot fetch failed, keeping last book state",
			slog.String("pair", pair), slog.Any("error", err))
		return
	}
	t.engine.ApplySnapshot(pair, snap.Bids, snap.Asks, snap.Timestamp.UnixMilli(), snap.Timestamp)
	infra.GlobalMetrics.RecordSnapshotApplied()
}

func (t *Tracker) handleTradeEvent(e *event.TradeEvent) {
	infra.GlobalMetrics.RecordTrade()
	t.mu.RLock()
	listeners := t.listeners
	t.mu.RUnlock()
	for _, fn := range listeners {
		fn(e.Trade)
	}
}
