package book

import (
	"errors"
	"sync"
	"time"

	"market_sync/internal/domain"
)

// ErrSequenceRegression is returned when a diff carries a sequence id older
// than the one already applied. The diff is not applied; the caller should
// request a fresh snapshot. This is a recoverable consistency fault.
var ErrSequenceRegression = errors.New("sequence id regression")

// Book is the consistent bid/ask ladder for one trading pair.
type Book struct {
	TradingPair string
	Bids        domain.BookSide
	Asks        domain.BookSide
	SequenceID  int64
	Timestamp   time.Time
}

func newBook(pair string) *Book {
	return &Book{
		TradingPair: pair,
		Bids:        domain.NewBookSide(),
		Asks:        domain.NewBookSide(),
	}
}

// Engine owns one book per trading pair. Mutations come from a single
// goroutine (the tracker); the mutex guards external reads only.
type Engine struct {
	mu          sync.RWMutex
	books       map[string]*Book
	fullReplace map[string]bool
}

// NewEngine creates an empty merge engine.
func NewEngine() *Engine {
	return &Engine{
		books:       make(map[string]*Book),
		fullReplace: make(map[string]bool),
	}
}

// SetFullReplaceMode marks a pair's depth feed as full-replace: every update
// message carries the entire top-N depth, so diffs replace the present
// side(s) wholesale instead of editing rows. The FarhadMarket depth channel
// is full-replace despite being conventionally called a diff channel.
func (e *Engine) SetFullReplaceMode(pair string, on bool) {
	e.mu.Lock()
	e.fullReplace[pair] = on
	e.mu.Unlock()
}

func (e *Engine) book(pair string) *Book {
	b, ok := e.books[pair]
	if !ok {
		b = newBook(pair)
		e.books[pair] = b
	}
	return b
}

// ApplySnapshot replaces the entire book for the pair atomically.
// A snapshot resets the sequence id, so it may move backwards here.
func (e *Engine) ApplySnapshot(pair string, bids, asks []domain.Level, seqID int64, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.book(pair)
	b.Bids = domain.NewBookSide()
	b.Asks = domain.NewBookSide()
	for _, lvl := range bids {
		b.Bids.Set(lvl.Price, lvl.Quantity)
	}
	for _, lvl := range asks {
		b.Asks.Set(lvl.Price, lvl.Quantity)
	}
	b.SequenceID = seqID
	b.Timestamp = ts
}

// ApplyDiff applies price-level deltas in the order received. A zero
// quantity removes the level; removing an absent level is a no-op.
// In full-replace mode every non-empty side replaces the book side
// wholesale. A regressing sequence id rejects the whole message.
func (e *Engine) ApplyDiff(pair string, bids, asks []domain.Level, seqID int64, ts time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.book(pair)
	if seqID > 0 && b.SequenceID > 0 && seqID < b.SequenceID {
		return ErrSequenceRegression
	}

	if e.fullReplace[pair] {
		if len(bids) > 0 {
			b.Bids = domain.NewBookSide()
			for _, lvl := range bids {
				b.Bids.Set(lvl.Price, lvl.Quantity)
			}
		}
		if len(asks) > 0 {
			b.Asks = domain.NewBookSide()
			for _, lvl := range asks {
				b.Asks.Set(lvl.Price, lvl.Quantity)
			}
		}
	} else {
		for _, lvl := range bids {
			b.Bids.Set(lvl.Price, lvl.Quantity)
		}
		for _, lvl := range asks {
			b.Asks.Set(lvl.Price, lvl.Quantity)
		}
	}

	if seqID > 0 {
		b.SequenceID = seqID
	}
	b.Timestamp = ts
	return nil
}

// Snapshot returns a sorted copy of the pair's book for external readers.
func (e *Engine) Snapshot(pair string) (bids, asks []domain.Level, seqID int64, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, found := e.books[pair]
	if !found {
		return nil, nil, 0, false
	}
	return b.Bids.Levels(true), b.Asks.Levels(false), b.SequenceID, true
}

// BestBidAsk returns the top of book for the pair.
func (e *Engine) BestBidAsk(pair string) (bid, ask domain.Level, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, found := e.books[pair]
	if !found {
		return domain.Level{}, domain.Level{}, false
	}
	bestBid, hasBid := b.Bids.Best(true)
	bestAsk, hasAsk := b.Asks.Best(false)
	return bestBid, bestAsk, hasBid && hasAsk
}

// SequenceID returns the last applied sequence id for the pair.
func (e *Engine) SequenceID(pair string) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if b, ok := e.books[pair]; ok {
		return b.SequenceID
	}
	return 0
}
