package event

import (
	"sync"
	"time"

	"market_sync/internal/domain"
)

// Event pools reduce GC pressure on the market-data hotpath.
//
// Usage:
//
//	ev := AcquireBookEvent()
//	ev.TradingPair = "BTC-USDT"
//	// ... send on the queue; the consumer releases it ...
//	ReleaseBookEvent(ev)
var bookPool = sync.Pool{
	New: func() interface{} {
		return &BookEvent{}
	},
}

// AcquireBookEvent gets a BookEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireBookEvent() *BookEvent {
	return bookPool.Get().(*BookEvent)
}

// ReleaseBookEvent returns a BookEvent to the pool.
// The event is reset to zero values before being pooled.
func ReleaseBookEvent(ev *BookEvent) {
	if ev == nil {
		return
	}
	ev.Type = ""
	ev.TradingPair = ""
	ev.SequenceID = 0
	ev.Ts = time.Time{}
	ev.Bids = ev.Bids[:0]
	ev.Asks = ev.Asks[:0]

	bookPool.Put(ev)
}

// TradeEvent pool
var tradePool = sync.Pool{
	New: func() interface{} {
		return &TradeEvent{}
	},
}

// AcquireTradeEvent gets a TradeEvent from the pool.
func AcquireTradeEvent() *TradeEvent {
	return tradePool.Get().(*TradeEvent)
}

// ReleaseTradeEvent returns a TradeEvent to the pool.
func ReleaseTradeEvent(ev *TradeEvent) {
	if ev == nil {
		return
	}
	ev.TradingPair = ""
	ev.Ts = time.Time{}
	ev.Trade = domain.TradeRecord{}

	tradePool.Put(ev)
}

// Warmup pre-allocates event objects to reduce GC pressure at startup.
// It acquires and releases a batch of events.
func Warmup() {
	const batchSize = 256

	bookEvs := make([]*BookEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		bookEvs = append(bookEvs, AcquireBookEvent())
	}
	for _, ev := range bookEvs {
		ReleaseBookEvent(ev)
	}

	tradeEvs := make([]*TradeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		tradeEvs = append(tradeEvs, AcquireTradeEvent())
	}
	for _, ev := range tradeEvs {
		ReleaseTradeEvent(ev)
	}
}
