package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"market_sync/internal/domain"
)

const clientOrderIDPrefix = "MS"

// TradeUpdate is one execution reported on the deals websocket channel.
type TradeUpdate struct {
	TradeID   string
	OrderID   string // exchange order id owning the fill
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Fee       decimal.Decimal
	Timestamp time.Time
}

// Execution is a discrete fill record attached to an order status event.
type Execution struct {
	ID           string
	LastPrice    decimal.Decimal
	LastQuantity decimal.Decimal
	Timestamp    string
}

// StatusUpdate is an order status event from the REST orders endpoint.
// It carries either a list of discrete executions or cumulative fields,
// never both; the accounting arithmetic differs per shape and must not be
// unified (additive per execution vs one-shot absolute cumulative).
type StatusUpdate struct {
	EventID            string // dedup key for the cumulative shape
	ClientOrderID      string
	ExchangeOrderID    string
	Status             string
	Executions         []Execution
	HasCumulative      bool
	CumulativeQuantity decimal.Decimal
	AveragePrice       decimal.Decimal
	Price              decimal.Decimal
	FeeRate            decimal.Decimal
}

// InFlightOrder is one order's authoritative state, merged from REST polls
// and websocket executions. Mutated only through the Apply methods; the
// executed amounts and fee are monotonically non-decreasing.
type InFlightOrder struct {
	ClientOrderID   string
	ExchangeOrderID string // assigned once by the exchange, then immutable
	TradingPair     string
	OrderType       string
	Side            string
	Price           decimal.Decimal
	Amount          decimal.Decimal
	State           string

	ExecutedAmountBase  decimal.Decimal
	ExecutedAmountQuote decimal.Decimal
	FeePaid             decimal.Decimal
	FeeAsset            string

	applied *Ledger
}

// NewInFlightOrder creates an order in the OPEN state.
func NewInFlightOrder(clientOrderID, exchangeOrderID, pair, orderType, side string, price, amount decimal.Decimal) *InFlightOrder {
	return &InFlightOrder{
		ClientOrderID:       clientOrderID,
		ExchangeOrderID:     exchangeOrderID,
		TradingPair:         pair,
		OrderType:           orderType,
		Side:                side,
		Price:               price,
		Amount:              amount,
		State:               domain.OrderStatusOpen,
		ExecutedAmountBase:  decimal.Zero,
		ExecutedAmountQuote: decimal.Zero,
		FeePaid:             decimal.Zero,
		applied:             NewLedger(),
	}
}

// NewClientOrderID builds a caller-assigned order id with a side/pair prefix.
func NewClientOrderID(isBuy bool, tradingPair string) string {
	side := "S"
	if isBuy {
		side = "B"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return clientOrderIDPrefix + "-" + side + "-" + tradingPair + "-" + suffix
}

// IsDone reports whether the order reached a terminal state.
func (o *InFlightOrder) IsDone() bool {
	return domain.IsTerminalStatus(o.State)
}

// IsFailure reports whether the order was rejected by the exchange.
func (o *InFlightOrder) IsFailure() bool {
	return o.State == domain.OrderStatusRejected
}

// IsCancelled reports whether the order ended without filling.
func (o *InFlightOrder) IsCancelled() bool {
	return o.State == domain.OrderStatusCanceled || o.State == domain.OrderStatusExpired
}

// AppliedIDs returns the dedup ledger contents, for persistence.
func (o *InFlightOrder) AppliedIDs() []string {
	return o.applied.IDs()
}

// RestoreAppliedIDs reloads the dedup ledger from persisted state.
func (o *InFlightOrder) RestoreAppliedIDs(ids []string) {
	for _, id := range ids {
		o.applied.Add(id)
	}
}

// ApplyTradeUpdate folds one deals-channel execution into the order.
// Returns true if the order was updated. An event for another order, a
// replayed trade id, or an update against a finished order reports false.
// Accounting is strictly additive, so a replay after partial failure cannot
// double count as long as the trade id is in the ledger.
func (o *InFlightOrder) ApplyTradeUpdate(t TradeUpdate) (bool, error) {
	if t.TradeID == "" {
		return false, &domain.MalformedMessageError{Kind: "deal", Field: "id"}
	}
	if t.OrderID == "" {
		return false, &domain.MalformedMessageError{Kind: "deal", Field: "orderId"}
	}
	if o.IsDone() {
		return false, nil
	}
	if t.OrderID != o.ExchangeOrderID || o.applied.Seen(t.TradeID) {
		return false, nil
	}

	o.applied.Add(t.TradeID)
	o.ExecutedAmountBase = o.ExecutedAmountBase.Add(t.Amount)
	o.ExecutedAmountQuote = o.ExecutedAmountQuote.Add(t.Price.Mul(t.Amount))
	o.FeePaid = o.FeePaid.Add(t.Fee)
	o.updateStateFromFill()
	return true, nil
}

// ApplyStatusUpdate folds one order status event into the order. The status
// field is applied unconditionally; fills are then accounted per payload
// shape. Returns true if the event carried new information.
func (o *InFlightOrder) ApplyStatusUpdate(u StatusUpdate) (bool, error) {
	if u.Status == "" {
		return false, &domain.MalformedMessageError{Kind: "order_status", Field: "orderStatus"}
	}
	if o.IsDone() {
		return false, nil
	}

	o.State = u.Status

	if len(u.Executions) == 0 && !u.HasCumulative {
		return false, nil
	}

	applied := false
	if len(u.Executions) > 0 {
		applied = o.applyExecutions(u.Executions)
	} else {
		var err error
		applied, err = o.applyCumulative(u)
		if err != nil {
			return false, err
		}
	}
	if !applied {
		return false, nil
	}

	if o.ExecutedAmountBase.Sign() <= 0 {
		// No trades executed yet.
		return false, nil
	}
	if u.FeeRate.Sign() > 0 {
		o.FeePaid = o.FeePaid.Add(u.FeeRate.Mul(o.ExecutedAmountBase))
	}
	if o.FeeAsset == "" {
		_, quote := domain.SplitTradingPair(o.TradingPair)
		o.FeeAsset = quote
	}
	return true, nil
}

// applyExecutions accumulates discrete fill records additively. Each record
// is deduplicated by its own id, falling back to its timestamp when the
// exchange omits the id.
func (o *InFlightOrder) applyExecutions(execs []Execution) bool {
	newTrades := false
	for _, ex := range execs {
		key := ex.ID
		if key == "" {
			key = ex.Timestamp
		}
		if key == "" || o.applied.Seen(key) {
			continue
		}
		o.applied.Add(key)
		o.ExecutedAmountBase = o.ExecutedAmountBase.Add(ex.LastQuantity)
		o.ExecutedAmountQuote = o.ExecutedAmountQuote.Add(ex.LastPrice.Mul(ex.LastQuantity))
		newTrades = true
	}
	if newTrades {
		o.updateStateFromFill()
	}
	return newTrades
}

// applyCumulative treats the event's cumulative quantity as an absolute
// value, overwriting the executed amounts. The event is deduplicated by its
// own id. A cumulative quantity that does not exceed the recorded executed
// amount is rejected without consuming the id, so the executed amounts stay
// monotonic and a later, larger replay of the same event still applies.
func (o *InFlightOrder) applyCumulative(u StatusUpdate) (bool, error) {
	if u.EventID == "" {
		return false, &domain.MalformedMessageError{Kind: "order_status", Field: "id"}
	}
	if o.applied.Seen(u.EventID) {
		return false, nil
	}
	if u.CumulativeQuantity.LessThanOrEqual(o.ExecutedAmountBase) && o.ExecutedAmountBase.Sign() > 0 {
		return false, nil
	}

	price := u.AveragePrice
	if price.Sign() <= 0 {
		price = u.Price
	}

	o.applied.Add(u.EventID)
	o.ExecutedAmountBase = u.CumulativeQuantity
	o.ExecutedAmountQuote = price.Mul(u.CumulativeQuantity)
	return true, nil
}

func (o *InFlightOrder) updateStateFromFill() {
	if o.ExecutedAmountBase.GreaterThanOrEqual(o.Amount) {
		o.State = domain.OrderStatusFilled
	} else if o.ExecutedAmountBase.Sign() > 0 && o.State == domain.OrderStatusOpen {
		o.State = domain.OrderStatusPartiallyFilled
	}
}

// Copy returns a value snapshot safe for external readers. The ledger is
// deep-copied so callers cannot perturb dedup state.
func (o *InFlightOrder) Copy() *InFlightOrder {
	cp := *o
	cp.applied = NewLedger()
	for _, id := range o.applied.IDs() {
		cp.applied.Add(id)
	}
	return &cp
}
