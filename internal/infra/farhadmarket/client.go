package farhadmarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"market_sync/internal/domain"
	"market_sync/internal/infra"
	"market_sync/internal/order"
)

// Client is the FarhadMarket REST API client (Boundary Layer).
// It implements domain.BookDataSource.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	auth          *Auth
	snapshotLimit int
	logger        *slog.Logger
}

// NewClient creates a new FarhadMarket API client.
func NewClient(cfg *infra.Config) *Client {
	return &Client{
		baseURL: cfg.API.FarhadMarket.RestURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		auth:          NewAuth(cfg.API.FarhadMarket.APIKey, cfg.API.FarhadMarket.SecretKey),
		snapshotLimit: cfg.API.FarhadMarket.SnapshotLimit,
		logger:        slog.Default().With("module", "farhadmarket_client"),
	}
}

// FetchSnapshot fetches the whole order book for one trading pair.
func (c *Client) FetchSnapshot(ctx context.Context, tradingPair string) (*domain.DepthSnapshot, error) {
	symbol := ToExchangeSymbol(tradingPair)
	query := url.Values{
		"interval": {"0"},
		"limit":    {strconv.Itoa(c.snapshotLimit)},
	}

	var resp restDepthResponse
	if err := c.doGet(ctx, "/markets/"+symbol, query, false, &resp); err != nil {
		return nil, err
	}

	bids, err := parseLevels(resp.Bids, "depth")
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels(resp.Asks, "depth")
	if err != nil {
		return nil, err
	}

	infra.GlobalMetrics.RecordSnapshotFetched()
	return &domain.DepthSnapshot{
		TradingPair: tradingPair,
		Bids:        bids,
		Asks:        asks,
		Timestamp:   time.Now(),
	}, nil
}

// GetLastTradedPrices fetches last prices for the given canonical pairs.
func (c *Client) GetLastTradedPrices(ctx context.Context, tradingPairs []string) (map[string]decimal.Decimal, error) {
	var resp map[string]json.Number
	if err := c.doGet(ctx, "/markets/all/lasts", nil, false, &resp); err != nil {
		return nil, err
	}

	wanted := make(map[string]string, len(tradingPairs)) // exchange symbol -> canonical
	for _, pair := range tradingPairs {
		wanted[ToExchangeSymbol(pair)] = pair
	}

	out := make(map[string]decimal.Decimal)
	for symbol, raw := range resp {
		pair, ok := wanted[symbol]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(raw.String())
		if err != nil {
			return nil, &domain.MalformedMessageError{Kind: "lasts", Field: symbol}
		}
		out[pair] = price
	}
	return out, nil
}

// FetchTradingPairs lists every pair the exchange currently quotes.
func (c *Client) FetchTradingPairs(ctx context.Context) ([]string, error) {
	var resp map[string]json.Number
	if err := c.doGet(ctx, "/markets/all/lasts", nil, false, &resp); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(resp))
	for symbol := range resp {
		out = append(out, FromExchangeSymbol(symbol))
	}
	return out, nil
}

// FetchOrders polls the authenticated orders endpoint and converts each row
// into a status update for the order tracker. Malformed rows are dropped
// with a diagnostic; the rest of the page still applies.
func (c *Client) FetchOrders(ctx context.Context) ([]order.StatusUpdate, error) {
	var rows []restOrderRow
	if err := c.doGet(ctx, "/orders", nil, true, &rows); err != nil {
		return nil, err
	}

	out := make([]order.StatusUpdate, 0, len(rows))
	for _, row := range rows {
		u, err := parseOrderRow(row)
		if err != nil {
			c.logger.Warn("Dropping malformed order row", slog.Any("error", err))
			infra.GlobalMetrics.RecordError()
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// doGet handles auth headers, transport errors and status classification.
func (c *Client) doGet(ctx context.Context, path string, query url.Values, authenticated bool, out interface{}) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	if authenticated {
		for k, v := range c.auth.Headers() {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.NewNetworkError("get "+path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewNetworkError("read "+path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.APIError{Endpoint: path, Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return nil
}
