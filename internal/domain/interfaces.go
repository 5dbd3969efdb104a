package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ExchangeWorker defines the interface for exchange WebSocket connectors
type ExchangeWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// BookDataSource is the REST side of market data: full snapshots and last
// traded prices. Implemented per exchange; the core depends only on this.
type BookDataSource interface {
	FetchSnapshot(ctx context.Context, tradingPair string) (*DepthSnapshot, error)
	GetLastTradedPrices(ctx context.Context, tradingPairs []string) (map[string]decimal.Decimal, error)
}
