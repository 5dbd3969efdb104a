package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBookSide_SetAndRemove(t *testing.T) {
	t.Run("Zero Quantity Removes", func(t *testing.T) {
		side := NewBookSide()
		side.Set(decimal.NewFromInt(100), decimal.NewFromInt(2))
		side.Set(decimal.NewFromInt(100), decimal.Zero)
		if side.Len() != 0 {
			t.Errorf("Expected empty side, got %d levels", side.Len())
		}
	})

	t.Run("Removing Absent Level Is No-Op", func(t *testing.T) {
		side := NewBookSide()
		side.Set(decimal.NewFromInt(100), decimal.Zero)
		if side.Len() != 0 {
			t.Error("Removing an absent level must not create one")
		}
	})

	t.Run("Replace Quantity", func(t *testing.T) {
		side := NewBookSide()
		side.Set(decimal.NewFromInt(100), decimal.NewFromInt(2))
		side.Set(decimal.NewFromInt(100), decimal.NewFromInt(5))
		lvl, ok := side.Get(decimal.NewFromInt(100))
		if !ok || !lvl.Quantity.Equal(decimal.NewFromInt(5)) {
			t.Errorf("Expected quantity 5, got %v", lvl.Quantity)
		}
	})
}

func TestBookSide_Ordering(t *testing.T) {
	side := NewBookSide()
	side.Set(decimal.NewFromInt(101), decimal.NewFromInt(1))
	side.Set(decimal.NewFromInt(99), decimal.NewFromInt(1))
	side.Set(decimal.NewFromInt(100), decimal.NewFromInt(1))

	bids := side.Levels(true)
	if !bids[0].Price.Equal(decimal.NewFromInt(101)) {
		t.Errorf("Best bid should come first, got %v", bids[0].Price)
	}

	asks := side.Levels(false)
	if !asks[0].Price.Equal(decimal.NewFromInt(99)) {
		t.Errorf("Best ask should come first, got %v", asks[0].Price)
	}

	best, ok := side.Best(true)
	if !ok || !best.Price.Equal(decimal.NewFromInt(101)) {
		t.Errorf("Best(descending) mismatch: %v", best.Price)
	}
}

func TestSplitTradingPair(t *testing.T) {
	base, quote := SplitTradingPair("BTC-USDT")
	if base != "BTC" || quote != "USDT" {
		t.Errorf("Expected BTC/USDT, got %s/%s", base, quote)
	}

	base, quote = SplitTradingPair("BTCUSDT")
	if base != "" || quote != "" {
		t.Error("Malformed pair should yield empty assets")
	}
}
