package event

import (
	"time"

	"market_sync/internal/domain"
)

// Event is a tagged message on the market-data queue. Each event is
// produced by exactly one source (stream worker or snapshot refresher),
// consumed exactly once by the book tracker, and released back to its pool.
type Event interface {
	GetType() string
}

const (
	// TypeBookSnapshot replaces the whole book for a pair.
	TypeBookSnapshot = "book_snapshot"
	// TypeBookDiff carries per-level deltas for a pair.
	TypeBookDiff = "book_diff"
	// TypeTrade carries one public trade.
	TypeTrade = "trade"
)

// BookEvent is a depth message: a full snapshot or a diff, depending on Type.
type BookEvent struct {
	Type        string
	TradingPair string
	SequenceID  int64
	Ts          time.Time
	Bids        []domain.Level
	Asks        []domain.Level
}

func (e *BookEvent) GetType() string { return e.Type }

// TradeEvent is one public trade observed on the deals channel.
type TradeEvent struct {
	TradingPair string
	Ts          time.Time
	Trade       domain.TradeRecord
}

func (e *TradeEvent) GetType() string { return TypeTrade }
