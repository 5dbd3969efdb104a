package app

import (
	"errors"
	"log/slog"

	"market_sync/internal/book"
	"market_sync/internal/domain"
	"market_sync/internal/event"
	"market_sync/internal/infra"
	"market_sync/internal/infra/storage"
	"market_sync/internal/order"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config       *infra.Config
	Storage      *storage.Storage
	BookEngine   *book.Engine
	OrderTracker *order.Tracker
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB,
// order recovery).
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Market Sync...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage()
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Book engine, full-replace mode for every FarhadMarket pair
	b.BookEngine = book.NewEngine()
	if cfg.Book.FullReplace {
		for _, pair := range cfg.API.FarhadMarket.TradingPairs {
			b.BookEngine.SetFullReplaceMode(pair, true)
		}
	}

	// 5. Order tracker, recovered from the last run
	b.OrderTracker = order.NewTracker(store, slog.Default().With("module", "order_tracker"))
	restored, err := store.LoadOrders()
	if err != nil {
		return err
	}
	if len(restored) > 0 {
		b.OrderTracker.Restore(restored)
		slog.Info("✅ In-flight orders recovered", slog.Int("count", len(restored)))
	}

	// 6. Pre-warm the event pools before the streams open
	event.Warmup()

	return nil
}

// WireTrades routes public trade records into order reconciliation. Fills
// for orders this process never placed are expected and skipped.
func (b *Bootstrap) WireTrades(tracker *book.Tracker) {
	tracker.AddTradeListener(func(rec domain.TradeRecord) {
		if rec.OrderID == "" {
			return
		}
		applied, err := b.OrderTracker.ProcessTradeUpdate(order.TradeUpdate{
			TradeID:   rec.ID,
			OrderID:   rec.OrderID,
			Price:     rec.Price,
			Amount:    rec.Amount,
			Fee:       rec.Fee,
			Timestamp: rec.Timestamp,
		})
		switch {
		case errors.Is(err, domain.ErrUnknownOrder):
		case err != nil:
			infra.GlobalMetrics.RecordError()
			slog.Warn("Rejected trade update", slog.String("trade_id", rec.ID), slog.Any("error", err))
		case !applied:
			infra.GlobalMetrics.RecordDuplicateDropped()
		}
	})
}
