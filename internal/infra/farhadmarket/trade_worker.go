package farhadmarket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"market_sync/internal/domain"
	"market_sync/internal/event"
	"market_sync/internal/infra"
)

// TradeWorker maintains the market.deals subscription for a set of trading
// pairs and feeds trade events into the tracker inbox. Retries after a
// 5-second pause on unexpected error; cancellation propagates immediately.
type TradeWorker struct {
	wsURL      string
	pairs      []string
	inbox      chan<- event.Event
	logger     *slog.Logger
	retryDelay time.Duration
	connected  bool
	mu         sync.RWMutex
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewTradeWorker creates a trade stream supervisor.
func NewTradeWorker(wsURL string, pairs []string, inbox chan<- event.Event, logger *slog.Logger) *TradeWorker {
	if logger == nil {
		logger = slog.Default().With("module", "trade_worker")
	}
	return &TradeWorker{
		wsURL:      wsURL,
		pairs:      pairs,
		inbox:      inbox,
		logger:     logger,
		retryDelay: tradeRetryDelay,
	}
}

// Connect starts the supervision loop.
func (w *TradeWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.supervise(ctx)
	return nil
}

func (w *TradeWorker) supervise(ctx context.Context) {
	defer w.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}

		err := w.runSession(ctx)
		w.setConnected(false)
		if ctx.Err() != nil {
			return
		}

		infra.GlobalMetrics.RecordReconnect()
		w.logger.Warn("Unexpected error with trade WebSocket connection. Retrying in 5 seconds.",
			slog.Any("error", err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryDelay):
		}
	}
}

func (w *TradeWorker) runSession(ctx context.Context) error {
	session, err := dialSession(ctx, w.wsURL)
	if err != nil {
		return domain.NewNetworkError("connect", err)
	}
	defer session.close()

	// A blocked read only notices cancellation once the connection dies,
	// so close it as soon as the context does.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			session.close()
		case <-stop:
		}
	}()

	for _, pair := range w.pairs {
		if err := session.subscribe(channelDeals, map[string]string{
			"market": ToExchangeSymbol(pair),
		}); err != nil {
			return domain.NewNetworkError("subscribe", err)
		}
	}

	w.setConnected(true)
	infra.GlobalMetrics.IncrementConnections()
	defer infra.GlobalMetrics.DecrementConnections()
	w.logger.Info("Trade stream connected", slog.Int("pairs", len(w.pairs)))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, err := session.readMessage()
		if err != nil {
			var malformed *domain.MalformedMessageError
			if errors.As(err, &malformed) {
				w.logger.Warn("Dropping malformed stream message", slog.Any("error", err))
				infra.GlobalMetrics.RecordError()
				continue
			}
			return domain.NewNetworkError("read", err)
		}
		w.handleMessage(msg)
	}
}

func (w *TradeWorker) handleMessage(msg *wsMessage) {
	if msg.Channel != channelDeals || msg.Event != eventUpdate {
		return
	}

	var body dealsBody
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		w.logger.Warn("Dropping malformed deals body", slog.Any("error", err))
		infra.GlobalMetrics.RecordError()
		return
	}

	pair := FromExchangeSymbol(body.Market)
	for _, deal := range body.Deals {
		rec, err := parseDeal(deal, pair)
		if err != nil {
			w.logger.Warn("Dropping malformed deal", slog.Any("error", err))
			infra.GlobalMetrics.RecordError()
			continue
		}

		ev := event.AcquireTradeEvent()
		ev.TradingPair = pair
		ev.Ts = rec.Timestamp
		ev.Trade = rec

		select {
		case w.inbox <- ev:
		default:
			event.ReleaseTradeEvent(ev) // Release if dropped
		}
	}
}

func (w *TradeWorker) setConnected(v bool) {
	w.mu.Lock()
	w.connected = v
	w.mu.Unlock()
}

// IsConnected reports whether a subscribed session is currently live.
func (w *TradeWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Disconnect stops the supervisor and waits for the session teardown.
func (w *TradeWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
