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

// DepthWorker maintains the market.depth subscription for a set of trading
// pairs and feeds book events into the tracker inbox. On any transport
// error it tears the connection down, waits 30 seconds and reconnects
// indefinitely; cancellation propagates immediately without backoff.
type DepthWorker struct {
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

// NewDepthWorker creates a depth stream supervisor.
func NewDepthWorker(wsURL string, pairs []string, inbox chan<- event.Event, logger *slog.Logger) *DepthWorker {
	if logger == nil {
		logger = slog.Default().With("module", "depth_worker")
	}
	return &DepthWorker{
		wsURL:      wsURL,
		pairs:      pairs,
		inbox:      inbox,
		logger:     logger,
		retryDelay: depthRetryDelay,
	}
}

// Connect starts the supervision loop.
func (w *DepthWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.supervise(ctx)
	return nil
}

func (w *DepthWorker) supervise(ctx context.Context) {
	defer w.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}

		err := w.runSession(ctx)
		w.setConnected(false)
		if ctx.Err() != nil {
			// Shutdown, not a fault: no backoff.
			return
		}

		infra.GlobalMetrics.RecordReconnect()
		// The depth feed is the primary book source, so its loss is
		// app-visible and its reconnect is paced conservatively.
		w.logger.Warn("Unexpected error with depth WebSocket connection. Retrying in 30 seconds. Check network connection.",
			slog.Any("error", err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryDelay):
		}
	}
}

// runSession owns exactly one connection: dial, subscribe all pairs, pump
// messages. The session is always closed before returning.
func (w *DepthWorker) runSession(ctx context.Context) error {
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
		if err := session.subscribe(channelDepth, map[string]string{
			"market":   ToExchangeSymbol(pair),
			"interval": "0",
		}); err != nil {
			return domain.NewNetworkError("subscribe", err)
		}
	}

	w.setConnected(true)
	infra.GlobalMetrics.IncrementConnections()
	defer infra.GlobalMetrics.DecrementConnections()
	w.logger.Info("Depth stream connected", slog.Int("pairs", len(w.pairs)))

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

func (w *DepthWorker) handleMessage(msg *wsMessage) {
	if msg.Channel != channelDepth || (msg.Event != eventInit && msg.Event != eventUpdate) {
		return
	}

	var body depthBody
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		w.logger.Warn("Dropping malformed depth body", slog.Any("error", err))
		infra.GlobalMetrics.RecordError()
		return
	}

	bids, err := parseLevels(body.Bids, "depth")
	if err == nil {
		var asks []domain.Level
		asks, err = parseLevels(body.Asks, "depth")
		if err == nil {
			w.emit(msg.Event, body.Market, bids, asks)
			return
		}
	}
	w.logger.Warn("Dropping malformed depth levels", slog.Any("error", err))
	infra.GlobalMetrics.RecordError()
}

func (w *DepthWorker) emit(eventKind, market string, bids, asks []domain.Level) {
	now := time.Now()

	ev := event.AcquireBookEvent()
	// The depth channel sends the entire book on every event; "init"
	// messages prime it as a snapshot, "update" messages go through the
	// diff path where full-replace mode applies.
	if eventKind == eventInit {
		ev.Type = event.TypeBookSnapshot
	} else {
		ev.Type = event.TypeBookDiff
	}
	ev.TradingPair = FromExchangeSymbol(market)
	ev.SequenceID = now.UnixMilli()
	ev.Ts = now
	ev.Bids = append(ev.Bids, bids...)
	ev.Asks = append(ev.Asks, asks...)

	select {
	case w.inbox <- ev:
	default:
		event.ReleaseBookEvent(ev) // Release if dropped
	}
}

func (w *DepthWorker) setConnected(v bool) {
	w.mu.Lock()
	w.connected = v
	w.mu.Unlock()
}

// IsConnected reports whether a subscribed session is currently live.
func (w *DepthWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Disconnect stops the supervisor and waits for the session teardown.
func (w *DepthWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
