package farhadmarket

import "strings"

// FarhadMarket uses underscore-delimited symbols ("BTC_USDT") while the
// rest of the system uses the canonical hyphen form ("BTC-USDT"). The
// translation happens only at this boundary.

// ToExchangeSymbol converts a canonical trading pair to the exchange form.
func ToExchangeSymbol(tradingPair string) string {
	return strings.ReplaceAll(tradingPair, "-", "_")
}

// FromExchangeSymbol converts an exchange symbol to the canonical form.
func FromExchangeSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "_", "-")
}
