package farhadmarket

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"market_sync/internal/domain"
	"market_sync/internal/order"
)

const (
	channelDepth = "market.depth"
	channelDeals = "market.deals"

	eventInit   = "init"
	eventUpdate = "update"

	tradeRetryDelay = 5 * time.Second
	depthRetryDelay = 30 * time.Second

	// Inter-pair pacing for REST snapshot fetches, to respect rate limits.
	snapshotPacing = 5 * time.Second

	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
)

// subscribeRequest Structure
type subscribeRequest struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"` // "subscribe"
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Channel string            `json:"channel"`
	Body    map[string]string `json:"body"`
}

// wsMessage is the envelope of every streamed message.
type wsMessage struct {
	ID      int64           `json:"id,omitempty"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Body    json.RawMessage `json:"body"`
}

// depthBody is the body of a market.depth message. The channel sends the
// entire depth (up to 150 levels) on every event, not incremental diffs.
type depthBody struct {
	Market string     `json:"market"`
	Asks   [][]string `json:"asks"`
	Bids   [][]string `json:"bids"`
}

// dealsBody is the body of a market.deals message.
type dealsBody struct {
	Market string      `json:"market"`
	Deals  []dealEntry `json:"deals"`
}

type dealEntry struct {
	ID      json.Number `json:"id"`
	Time    string      `json:"time"`
	Side    string      `json:"side"`
	Amount  string      `json:"amount"`
	Price   string      `json:"price"`
	Fee     string      `json:"fee"`
	OrderID json.Number `json:"orderId"`
}

// restDepthResponse is the body of GET /markets/{symbol}.
type restDepthResponse struct {
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
}

// restOrderRow is one order from the authenticated orders endpoint. The
// endpoint reports either discrete executions or cumulative fields.
type restOrderRow struct {
	ID            string          `json:"id"`
	ClientOrderID string          `json:"clientOrderId"`
	Symbol        string          `json:"symbol"`
	OrderType     string          `json:"orderType"`
	OrderSide     string          `json:"orderSide"`
	Quantity      json.Number     `json:"quantity"`
	Price         json.Number     `json:"price"`
	OrderStatus   string          `json:"orderStatus"`
	Timestamp     string          `json:"timestamp"`
	Executions    []restExecution `json:"executions"`

	CumulativeQuantity *json.Number `json:"cumulativeQuantity"`
	AveragePrice       json.Number  `json:"averagePrice"`

	// Legacy row shape: status is derived from fill and finish markers.
	FilledStock *json.Number `json:"filledStock"`
	Amount      *json.Number `json:"amount"`
	FinishedAt  string       `json:"finishedAt"`
}

type restExecution struct {
	ID                 string      `json:"id"`
	ExecutionType      string      `json:"executionType"`
	OrderStatus        string      `json:"orderStatus"`
	LastPrice          json.Number `json:"lastPrice"`
	AveragePrice       json.Number `json:"averagePrice"`
	LastQuantity       json.Number `json:"lastQuantity"`
	LeavesQuantity     json.Number `json:"leavesQuantity"`
	CumulativeQuantity json.Number `json:"cumulativeQuantity"`
	RejectReason       string      `json:"rejectReason"`
	Timestamp          string      `json:"timestamp"`
}

// parseLevels converts [[price, qty], ...] rows into levels.
func parseLevels(rows [][]string, kind string) ([]domain.Level, error) {
	out := make([]domain.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, &domain.MalformedMessageError{Kind: kind, Field: "level"}
		}
		price, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, &domain.MalformedMessageError{Kind: kind, Field: "price"}
		}
		qty, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, &domain.MalformedMessageError{Kind: kind, Field: "quantity"}
		}
		out = append(out, domain.Level{Price: price, Quantity: qty})
	}
	return out, nil
}

// parseDeal converts one deals-channel entry into a trade record.
func parseDeal(d dealEntry, tradingPair string) (domain.TradeRecord, error) {
	if d.ID.String() == "" {
		return domain.TradeRecord{}, &domain.MalformedMessageError{Kind: "deal", Field: "id"}
	}
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return domain.TradeRecord{}, &domain.MalformedMessageError{Kind: "deal", Field: "price"}
	}
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return domain.TradeRecord{}, &domain.MalformedMessageError{Kind: "deal", Field: "amount"}
	}
	fee := decimal.Zero
	if d.Fee != "" {
		if fee, err = decimal.NewFromString(d.Fee); err != nil {
			return domain.TradeRecord{}, &domain.MalformedMessageError{Kind: "deal", Field: "fee"}
		}
	}

	ts, err := time.Parse(time.RFC3339Nano, d.Time)
	if err != nil {
		ts = time.Now()
	}

	return domain.TradeRecord{
		ID:          d.ID.String(),
		TradingPair: tradingPair,
		Side:        d.Side,
		Price:       price,
		Amount:      amount,
		Fee:         fee,
		OrderID:     d.OrderID.String(),
		Timestamp:   ts,
	}, nil
}

// deriveStatus maps a legacy order row onto a status: fully filled wins,
// then a finish marker means canceled, otherwise the order is still open.
func deriveStatus(row restOrderRow) string {
	if row.OrderStatus != "" {
		return row.OrderStatus
	}
	if row.FilledStock != nil && row.Amount != nil && row.FilledStock.String() == row.Amount.String() {
		return domain.OrderStatusFilled
	}
	if row.FinishedAt != "" {
		return domain.OrderStatusCanceled
	}
	return domain.OrderStatusOpen
}

// parseOrderRow converts a REST order row into a status update for the
// order tracker.
func parseOrderRow(row restOrderRow) (order.StatusUpdate, error) {
	if row.ID == "" {
		return order.StatusUpdate{}, &domain.MalformedMessageError{Kind: "order_status", Field: "id"}
	}

	u := order.StatusUpdate{
		EventID:         row.ID,
		ClientOrderID:   row.ClientOrderID,
		ExchangeOrderID: row.ID,
		Status:          deriveStatus(row),
	}

	if p, err := decimal.NewFromString(row.Price.String()); err == nil {
		u.Price = p
	}
	if ap, err := decimal.NewFromString(row.AveragePrice.String()); err == nil {
		u.AveragePrice = ap
	}

	for _, ex := range row.Executions {
		lastPrice, err := decimal.NewFromString(ex.LastPrice.String())
		if err != nil {
			return order.StatusUpdate{}, &domain.MalformedMessageError{Kind: "order_status", Field: "lastPrice"}
		}
		lastQty, err := decimal.NewFromString(ex.LastQuantity.String())
		if err != nil {
			return order.StatusUpdate{}, &domain.MalformedMessageError{Kind: "order_status", Field: "lastQuantity"}
		}
		u.Executions = append(u.Executions, order.Execution{
			ID:           ex.ID,
			LastPrice:    lastPrice,
			LastQuantity: lastQty,
			Timestamp:    ex.Timestamp,
		})
	}

	if len(row.Executions) == 0 && row.CumulativeQuantity != nil {
		cum, err := decimal.NewFromString(row.CumulativeQuantity.String())
		if err != nil {
			return order.StatusUpdate{}, &domain.MalformedMessageError{Kind: "order_status", Field: "cumulativeQuantity"}
		}
		u.HasCumulative = true
		u.CumulativeQuantity = cum
	}

	return u, nil
}
