package domain

import "strings"

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"

	OrderStatusOpen            = "OPEN"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusExpired         = "EXPIRED"
	OrderStatusRejected        = "REJECTED"
)

// IsTerminalStatus reports whether an order in this status accepts no
// further updates.
func IsTerminalStatus(status string) bool {
	switch status {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired, OrderStatusRejected:
		return true
	}
	return false
}

// SplitTradingPair splits a canonical pair ("BTC-USDT") into base and quote
// assets. Returns empty strings when the pair is malformed.
func SplitTradingPair(pair string) (base, quote string) {
	parts := strings.SplitN(pair, "-", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
