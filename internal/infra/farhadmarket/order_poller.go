package farhadmarket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"market_sync/internal/domain"
	"market_sync/internal/infra"
	"market_sync/internal/order"
)

// OrderPoller periodically polls the REST orders endpoint and routes each
// status update into the order tracker. It is the REST leg of order
// reconciliation; deals-channel executions arrive through the trade path.
type OrderPoller struct {
	client   *Client
	tracker  *order.Tracker
	interval time.Duration
	logger   *slog.Logger
}

// NewOrderPoller creates an order status poller.
func NewOrderPoller(client *Client, tracker *order.Tracker, interval time.Duration, logger *slog.Logger) *OrderPoller {
	if logger == nil {
		logger = slog.Default().With("module", "order_poller")
	}
	return &OrderPoller{
		client:   client,
		tracker:  tracker,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until the context is canceled. Consecutive fetch failures back
// off exponentially and reset on the first success.
func (p *OrderPoller) Run(ctx context.Context) {
	p.logger.Info("Order poller started", slog.Duration("interval", p.interval))
	retryCount := 0
	for {
		delay := p.interval
		if retryCount > 0 {
			delay = infra.CalculateBackoff(retryCount)
		}
		if !sleepCtx(ctx, delay) {
			return
		}

		updates, err := p.client.FetchOrders(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			retryCount++
			infra.GlobalMetrics.RecordError()
			p.logger.Warn("Order poll failed", slog.Any("error", err), slog.Int("retry", retryCount))
			continue
		}
		retryCount = 0

		for _, u := range updates {
			p.apply(u)
		}
	}
}

func (p *OrderPoller) apply(u order.StatusUpdate) {
	applied, err := p.tracker.ProcessStatusUpdate(u)
	switch {
	case errors.Is(err, domain.ErrUnknownOrder):
		// Orders placed outside this process are not ours to track.
		p.logger.Debug("Ignoring update for untracked order",
			slog.String("exchange_order_id", u.ExchangeOrderID))
	case err != nil:
		infra.GlobalMetrics.RecordError()
		p.logger.Warn("Rejected order status update",
			slog.String("exchange_order_id", u.ExchangeOrderID), slog.Any("error", err))
	case !applied:
		infra.GlobalMetrics.RecordDuplicateDropped()
	}
}
