package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Level is a single (price, quantity) row on one side of an order book.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// BookSide maps a normalized price key to its level.
// A quantity of zero removes the level; removing an absent level is a no-op.
type BookSide map[string]Level

// NewBookSide creates an empty side.
func NewBookSide() BookSide {
	return make(BookSide)
}

// Set inserts or replaces the level at price. Zero (or negative) quantity
// removes the price level instead.
func (s BookSide) Set(price, quantity decimal.Decimal) {
	key := price.String()
	if quantity.Sign() <= 0 {
		delete(s, key)
		return
	}
	s[key] = Level{Price: price, Quantity: quantity}
}

// Get returns the level at price, if present.
func (s BookSide) Get(price decimal.Decimal) (Level, bool) {
	lvl, ok := s[price.String()]
	return lvl, ok
}

// Len returns the number of levels on the side.
func (s BookSide) Len() int {
	return len(s)
}

// Levels returns the side sorted by price. Bids are read with
// descending=true (best bid first), asks with descending=false.
func (s BookSide) Levels(descending bool) []Level {
	out := make([]Level, 0, len(s))
	for _, lvl := range s {
		out = append(out, lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// Best returns the top-of-book level for the side.
func (s BookSide) Best(descending bool) (Level, bool) {
	var best Level
	found := false
	for _, lvl := range s {
		if !found {
			best = lvl
			found = true
			continue
		}
		if descending && lvl.Price.GreaterThan(best.Price) {
			best = lvl
		} else if !descending && lvl.Price.LessThan(best.Price) {
			best = lvl
		}
	}
	return best, found
}

// DepthSnapshot is a full order book fetched over REST for one trading pair.
type DepthSnapshot struct {
	TradingPair string
	Bids        []Level
	Asks        []Level
	Timestamp   time.Time
}

// TradeRecord is a single public trade as reported by the exchange.
type TradeRecord struct {
	ID          string
	TradingPair string
	Side        string // "buy", "sell"
	Price       decimal.Decimal
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	OrderID     string
	Timestamp   time.Time
}
