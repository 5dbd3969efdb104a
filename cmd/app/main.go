package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market_sync/internal/app"
	"market_sync/internal/book"
	"market_sync/internal/infra/farhadmarket"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config
	fm := cfg.API.FarhadMarket

	// 4. REST client and book tracker (the single-writer loop)
	client := farhadmarket.NewClient(cfg)
	tracker := book.NewTracker(cfg.Book.InboxSize, bootstrap.BookEngine, client, nil)
	bootstrap.WireTrades(tracker)

	go tracker.Run(ctx)
	slog.InfoContext(ctx, "✅ Book tracker started")

	// 5. Stream workers
	depthWorker := farhadmarket.NewDepthWorker(fm.WSURL, fm.TradingPairs, tracker.Inbox(), nil)
	if err := depthWorker.Connect(ctx); err != nil {
		slog.Error("Failed to connect depth stream", slog.Any("error", err))
	}
	defer depthWorker.Disconnect()
	slog.InfoContext(ctx, "✅ DepthWorker started", slog.Int("pairs", len(fm.TradingPairs)))

	tradeWorker := farhadmarket.NewTradeWorker(fm.WSURL, fm.TradingPairs, tracker.Inbox(), nil)
	if err := tradeWorker.Connect(ctx); err != nil {
		slog.Error("Failed to connect trade stream", slog.Any("error", err))
	}
	defer tradeWorker.Disconnect()
	slog.InfoContext(ctx, "✅ TradeWorker started")

	// 6. Hourly snapshot refresher and order status poller
	refresher := farhadmarket.NewRefresher(client, fm.TradingPairs, tracker.Inbox(), nil)
	go refresher.Run(ctx)

	poller := farhadmarket.NewOrderPoller(client, bootstrap.OrderTracker,
		time.Duration(cfg.Orders.PollIntervalSec)*time.Second, nil)
	go poller.Run(ctx)

	slog.InfoContext(ctx, "✨ Market Sync fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
