package farhadmarket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"market_sync/internal/domain"
	"market_sync/internal/event"
)

type fakeBookSource struct {
	mu      sync.Mutex
	fetches map[string]int
	fail    map[string]bool
}

func newFakeBookSource() *fakeBookSource {
	return &fakeBookSource{fetches: make(map[string]int), fail: make(map[string]bool)}
}

func (f *fakeBookSource) FetchSnapshot(ctx context.Context, pair string) (*domain.DepthSnapshot, error) {
	f.mu.Lock()
	f.fetches[pair]++
	fail := f.fail[pair]
	f.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("fetch %s: unavailable", pair)
	}
	return &domain.DepthSnapshot{
		TradingPair: pair,
		Bids:        []domain.Level{{Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(2)}},
		Asks:        []domain.Level{{Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(3)}},
		Timestamp:   time.Now(),
	}, nil
}

func (f *fakeBookSource) GetLastTradedPrices(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{}, nil
}

func (f *fakeBookSource) count(pair string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[pair]
}

func TestRefresherEmitsSnapshotPerPair(t *testing.T) {
	source := newFakeBookSource()
	inbox := make(chan event.Event, 8)
	pairs := []string{"BTC-USDT", "ETH-USDT"}

	r := NewRefresher(source, pairs, inbox, discardLogger())
	r.pacing = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	seen := make(map[string]bool)
	for i := 0; i < len(pairs); i++ {
		ev := waitEvent(t, inbox)
		be, ok := ev.(*event.BookEvent)
		require.True(t, ok)
		require.Equal(t, event.TypeBookSnapshot, be.Type)
		require.Len(t, be.Bids, 1)
		seen[be.TradingPair] = true
		event.ReleaseBookEvent(be)
	}
	require.True(t, seen["BTC-USDT"])
	require.True(t, seen["ETH-USDT"])
}

func TestRefresherIsolatesPairFailures(t *testing.T) {
	source := newFakeBookSource()
	source.fail["BTC-USDT"] = true
	inbox := make(chan event.Event, 8)

	r := NewRefresher(source, []string{"BTC-USDT", "ETH-USDT"}, inbox, discardLogger())
	r.pacing = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// The failing pair must not block the healthy one.
	ev := waitEvent(t, inbox)
	be, ok := ev.(*event.BookEvent)
	require.True(t, ok)
	require.Equal(t, "ETH-USDT", be.TradingPair)
	event.ReleaseBookEvent(be)

	require.GreaterOrEqual(t, source.count("BTC-USDT"), 1)
	require.GreaterOrEqual(t, source.count("ETH-USDT"), 1)
}

func TestRefresherRunsAgainAfterHourBoundary(t *testing.T) {
	source := newFakeBookSource()
	inbox := make(chan event.Event, 32)

	r := NewRefresher(source, []string{"BTC-USDT"}, inbox, discardLogger())
	r.pacing = time.Millisecond
	// Pin "now" just before the boundary so the inter-pass sleep is short.
	r.now = func() time.Time {
		return time.Now().Truncate(time.Hour).Add(time.Hour - time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return source.count("BTC-USDT") >= 2 },
		2*time.Second, 5*time.Millisecond)
}

func TestNextHourBoundary(t *testing.T) {
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		{
			time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC),
		},
		{
			time.Date(2026, 8, 31, 10, 59, 59, 0, time.UTC),
			time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC),
		},
		{
			time.Date(2026, 8, 31, 23, 30, 0, 0, time.UTC),
			time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, c := range cases {
		if got := nextHourBoundary(c.in); !got.Equal(c.want) {
			t.Errorf("nextHourBoundary(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
