package order

import (
	"log/slog"
	"sync"

	"market_sync/internal/domain"
)

// Store persists in-flight orders so tracking survives a restart.
// Implemented by infra/storage; may be nil when persistence is disabled.
type Store interface {
	SaveOrder(o *InFlightOrder) error
	DeleteOrder(clientOrderID string) error
}

// Tracker owns the set of outstanding orders. All mutations go through
// Process* methods; unknown order ids are rejected, never inserted.
type Tracker struct {
	mu         sync.RWMutex
	orders     map[string]*InFlightOrder // by client order id
	byExchange map[string]string         // exchange order id -> client order id
	store      Store
	logger     *slog.Logger
}

// NewTracker creates an empty order tracker.
func NewTracker(store Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default().With("module", "order_tracker")
	}
	return &Tracker{
		orders:     make(map[string]*InFlightOrder),
		byExchange: make(map[string]string),
		store:      store,
		logger:     logger,
	}
}

// StartTracking registers a newly submitted order.
func (t *Tracker) StartTracking(o *InFlightOrder) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.orders[o.ClientOrderID]; ok {
		return domain.ErrDuplicateOrder
	}
	t.orders[o.ClientOrderID] = o
	if o.ExchangeOrderID != "" {
		t.byExchange[o.ExchangeOrderID] = o.ClientOrderID
	}
	t.persist(o)
	return nil
}

// StopTracking evicts an order after the caller has observed its terminal
// state.
func (t *Tracker) StopTracking(clientOrderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.orders[clientOrderID]
	if !ok {
		return
	}
	delete(t.orders, clientOrderID)
	if o.ExchangeOrderID != "" {
		delete(t.byExchange, o.ExchangeOrderID)
	}
	if t.store != nil {
		if err := t.store.DeleteOrder(clientOrderID); err != nil {
			t.logger.Warn("Failed to delete persisted order",
				slog.String("client_order_id", clientOrderID), slog.Any("error", err))
		}
	}
}

// SetExchangeOrderID records the exchange-assigned id exactly once.
func (t *Tracker) SetExchangeOrderID(clientOrderID, exchangeOrderID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.orders[clientOrderID]
	if !ok {
		return domain.ErrUnknownOrder
	}
	if o.ExchangeOrderID == "" {
		o.ExchangeOrderID = exchangeOrderID
		t.byExchange[exchangeOrderID] = clientOrderID
		t.persist(o)
	}
	return nil
}

// Get returns a snapshot of one tracked order.
func (t *Tracker) Get(clientOrderID string) (*InFlightOrder, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	o, ok := t.orders[clientOrderID]
	if !ok {
		return nil, false
	}
	return o.Copy(), true
}

// ActiveOrders returns snapshots of every tracked order.
func (t *Tracker) ActiveOrders() []*InFlightOrder {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*InFlightOrder, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, o.Copy())
	}
	return out
}

// ProcessTradeUpdate routes a deals-channel execution to its owning order
// by exchange order id. Executions for orders not being tracked are
// rejected with ErrUnknownOrder.
func (t *Tracker) ProcessTradeUpdate(u TradeUpdate) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	clientID, ok := t.byExchange[u.OrderID]
	if !ok {
		return false, domain.ErrUnknownOrder
	}
	o := t.orders[clientID]

	applied, err := o.ApplyTradeUpdate(u)
	if err != nil {
		return false, err
	}
	if applied {
		t.persist(o)
		if o.IsDone() {
			t.logger.Info("Order reached terminal state",
				slog.String("client_order_id", o.ClientOrderID),
				slog.String("state", o.State))
		}
	}
	return applied, nil
}

// ProcessStatusUpdate routes an order status event to its owning order,
// by client order id when present, else by exchange order id.
func (t *Tracker) ProcessStatusUpdate(u StatusUpdate) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	clientID := u.ClientOrderID
	if clientID == "" {
		var ok bool
		clientID, ok = t.byExchange[u.ExchangeOrderID]
		if !ok {
			return false, domain.ErrUnknownOrder
		}
	}
	o, ok := t.orders[clientID]
	if !ok {
		return false, domain.ErrUnknownOrder
	}

	applied, err := o.ApplyStatusUpdate(u)
	if err != nil {
		return false, err
	}
	if applied || o.IsDone() {
		t.persist(o)
	}
	return applied, nil
}

// Restore reloads tracked orders from persisted state at startup.
func (t *Tracker) Restore(orders []*InFlightOrder) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, o := range orders {
		if _, ok := t.orders[o.ClientOrderID]; ok {
			continue
		}
		t.orders[o.ClientOrderID] = o
		if o.ExchangeOrderID != "" {
			t.byExchange[o.ExchangeOrderID] = o.ClientOrderID
		}
	}
}

func (t *Tracker) persist(o *InFlightOrder) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveOrder(o); err != nil {
		t.logger.Warn("Failed to persist order state",
			slog.String("client_order_id", o.ClientOrderID), slog.Any("error", err))
	}
}
