package farhadmarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"market_sync/internal/domain"
	"market_sync/internal/order"
)

func TestOrderPollerAppliesUpdates(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.Write([]byte(`[
			{"id":"4258768","clientOrderId":"MS-B-BTC-USDT-a","orderStatus":"PARTIALLY_FILLED",
			 "executions":[{"id":"t1","lastPrice":"100","lastQuantity":"0.3","timestamp":"1000"}]},
			{"id":"9999999","orderStatus":"FILLED"}
		]`))
	}))
	defer srv.Close()

	tracker := order.NewTracker(nil, discardLogger())
	o := order.NewInFlightOrder("MS-B-BTC-USDT-a", "4258768", "BTC-USDT",
		domain.OrderTypeLimit, domain.SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(1))
	require.NoError(t, tracker.StartTracking(o))

	p := NewOrderPoller(newTestClient(srv.URL), tracker, 5*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// The tracked order absorbs its execution; the untracked one is
	// ignored without error.
	require.Eventually(t, func() bool {
		got, ok := tracker.Get("MS-B-BTC-USDT-a")
		return ok && got.State == domain.OrderStatusPartiallyFilled &&
			got.ExecutedAmountBase.Equal(decimal.RequireFromString("0.3"))
	}, 2*time.Second, 5*time.Millisecond)

	// Subsequent polls replay the same execution id; it must stay applied
	// exactly once.
	require.Eventually(t, func() bool { return polls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	got, ok := tracker.Get("MS-B-BTC-USDT-a")
	require.True(t, ok)
	require.True(t, got.ExecutedAmountBase.Equal(decimal.RequireFromString("0.3")))
}

func TestOrderPollerBacksOffOnFailure(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		http.Error(w, "unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOrderPoller(newTestClient(srv.URL), order.NewTracker(nil, discardLogger()),
		time.Millisecond, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	// One immediate poll, then the backoff pushes the next attempt past
	// the test window.
	require.GreaterOrEqual(t, polls.Load(), int32(1))
	require.Less(t, polls.Load(), int32(5))
}
