package order

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"market_sync/internal/domain"
)

// memStore records persistence calls in memory.
type memStore struct {
	mu      sync.Mutex
	saved   map[string]int
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]int)}
}

func (m *memStore) SaveOrder(o *InFlightOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[o.ClientOrderID]++
	return nil
}

func (m *memStore) DeleteOrder(clientOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, clientOrderID)
	return nil
}

func TestTracker_TrackAndRoute(t *testing.T) {
	store := newMemStore()
	tr := NewTracker(store, nil)

	o := newTestOrder()
	require.NoError(t, tr.StartTracking(o))
	require.ErrorIs(t, tr.StartTracking(o), domain.ErrDuplicateOrder)

	applied, err := tr.ProcessTradeUpdate(TradeUpdate{
		TradeID: "t1", OrderID: "4258768", Price: dec("100"), Amount: dec("0.4"), Fee: dec("0.01"),
	})
	require.NoError(t, err)
	require.True(t, applied)

	snap, ok := tr.Get(o.ClientOrderID)
	require.True(t, ok)
	require.True(t, snap.ExecutedAmountBase.Equal(dec("0.4")))
	require.GreaterOrEqual(t, store.saved[o.ClientOrderID], 2, "tracked order persisted on start and on update")
}

func TestTracker_UnknownOrderRejected(t *testing.T) {
	tr := NewTracker(nil, nil)

	_, err := tr.ProcessTradeUpdate(TradeUpdate{TradeID: "t1", OrderID: "nope", Amount: dec("1")})
	require.ErrorIs(t, err, domain.ErrUnknownOrder)

	_, err = tr.ProcessStatusUpdate(StatusUpdate{ExchangeOrderID: "nope", Status: domain.OrderStatusOpen})
	require.ErrorIs(t, err, domain.ErrUnknownOrder)

	require.Empty(t, tr.ActiveOrders(), "unknown updates must not insert orders")
}

func TestTracker_ExchangeIDAssignedOnce(t *testing.T) {
	tr := NewTracker(nil, nil)
	o := NewInFlightOrder("cid-1", "", "BTC-USDT", domain.OrderTypeLimit, domain.SideBuy, dec("100"), dec("1"))
	require.NoError(t, tr.StartTracking(o))

	require.NoError(t, tr.SetExchangeOrderID("cid-1", "ex-1"))
	// A second assignment is ignored.
	require.NoError(t, tr.SetExchangeOrderID("cid-1", "ex-2"))

	applied, err := tr.ProcessTradeUpdate(TradeUpdate{
		TradeID: "t1", OrderID: "ex-1", Price: dec("100"), Amount: dec("0.5"),
	})
	require.NoError(t, err)
	require.True(t, applied)
}

func TestTracker_StatusRoutingByClientID(t *testing.T) {
	tr := NewTracker(nil, nil)
	o := newTestOrder()
	require.NoError(t, tr.StartTracking(o))

	applied, err := tr.ProcessStatusUpdate(StatusUpdate{
		ClientOrderID: o.ClientOrderID,
		EventID:       "ev1",
		Status:        domain.OrderStatusPartiallyFilled,
		HasCumulative: true, CumulativeQuantity: dec("0.5"), AveragePrice: dec("100"),
	})
	require.NoError(t, err)
	require.True(t, applied)

	snap, _ := tr.Get(o.ClientOrderID)
	require.True(t, snap.ExecutedAmountBase.Equal(dec("0.5")))
}

func TestTracker_StopTracking(t *testing.T) {
	store := newMemStore()
	tr := NewTracker(store, nil)
	o := newTestOrder()
	require.NoError(t, tr.StartTracking(o))

	tr.StopTracking(o.ClientOrderID)
	_, ok := tr.Get(o.ClientOrderID)
	require.False(t, ok)
	require.Contains(t, store.deleted, o.ClientOrderID)

	_, err := tr.ProcessTradeUpdate(TradeUpdate{TradeID: "t9", OrderID: "4258768", Amount: dec("1")})
	require.ErrorIs(t, err, domain.ErrUnknownOrder)
}

func TestTracker_Restore(t *testing.T) {
	tr := NewTracker(nil, nil)

	o := newTestOrder()
	o.ExecutedAmountBase = dec("0.4")
	o.RestoreAppliedIDs([]string{"t1"})
	tr.Restore([]*InFlightOrder{o})

	// The restored ledger still deduplicates.
	applied, err := tr.ProcessTradeUpdate(TradeUpdate{
		TradeID: "t1", OrderID: "4258768", Price: dec("100"), Amount: dec("0.4"),
	})
	require.NoError(t, err)
	require.False(t, applied)

	snap, ok := tr.Get(o.ClientOrderID)
	require.True(t, ok)
	require.True(t, snap.ExecutedAmountBase.Equal(dec("0.4")))
}
