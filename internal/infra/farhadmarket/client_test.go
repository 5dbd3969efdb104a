package farhadmarket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"market_sync/internal/domain"
	"market_sync/internal/infra"
)

func newTestClient(restURL string) *Client {
	cfg := &infra.Config{}
	cfg.API.FarhadMarket.RestURL = restURL
	cfg.API.FarhadMarket.APIKey = "test-key"
	cfg.API.FarhadMarket.SecretKey = "test-secret"
	cfg.API.FarhadMarket.SnapshotLimit = 50
	return NewClient(cfg)
}

func TestClientFetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/BTC_USDT" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("interval") != "0" || r.URL.Query().Get("limit") != "50" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"bids":[["100","2"],["99","1"]],"asks":[["101","3"]]}`))
	}))
	defer srv.Close()

	snap, err := newTestClient(srv.URL).FetchSnapshot(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.TradingPair != "BTC-USDT" {
		t.Errorf("pair = %q", snap.TradingPair)
	}
	if len(snap.Bids) != 2 || len(snap.Asks) != 1 {
		t.Fatalf("levels = %d bids / %d asks", len(snap.Bids), len(snap.Asks))
	}
	if snap.Asks[0].Price.String() != "101" || snap.Asks[0].Quantity.String() != "3" {
		t.Errorf("unexpected ask: %v", snap.Asks[0])
	}
}

func TestClientGetLastTradedPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/all/lasts" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"BTC_USDT":"65000.5","ETH_USDT":"2600","DOGE_USDT":"0.1"}`))
	}))
	defer srv.Close()

	prices, err := newTestClient(srv.URL).GetLastTradedPrices(context.Background(), []string{"BTC-USDT", "ETH-USDT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(prices))
	}
	if prices["BTC-USDT"].String() != "65000.5" {
		t.Errorf("BTC-USDT = %v", prices["BTC-USDT"])
	}
	if _, ok := prices["DOGE-USDT"]; ok {
		t.Error("unrequested pair must not be returned")
	}
}

func TestClientFetchTradingPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"BTC_USDT":"65000.5","ETH_USDT":"2600"}`))
	}))
	defer srv.Close()

	pairs, err := newTestClient(srv.URL).FetchTradingPairs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	seen := map[string]bool{}
	for _, p := range pairs {
		seen[p] = true
	}
	if !seen["BTC-USDT"] || !seen["ETH-USDT"] {
		t.Errorf("unexpected pairs: %v", pairs)
	}
}

func TestClientFetchOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "test-key" || r.Header.Get("X-API-SECRET") != "test-secret" {
			t.Error("missing auth headers on orders request")
		}
		w.Write([]byte(`[
			{"id":"1","clientOrderId":"MS-B-BTC-USDT-a","orderStatus":"OPEN","cumulativeQuantity":"0.5","averagePrice":"100"},
			{"clientOrderId":"missing-exchange-id"},
			{"id":"2","orderStatus":"FILLED","executions":[{"id":"t1","lastPrice":"99","lastQuantity":"1","timestamp":"1000"}]}
		]`))
	}))
	defer srv.Close()

	updates, err := newTestClient(srv.URL).FetchOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected the malformed row dropped, got %d updates", len(updates))
	}
	if !updates[0].HasCumulative || updates[0].CumulativeQuantity.String() != "0.5" {
		t.Errorf("unexpected first update: %+v", updates[0])
	}
	if updates[1].Status != domain.OrderStatusFilled || len(updates[1].Executions) != 1 {
		t.Errorf("unexpected second update: %+v", updates[1])
	}
}

func TestClientErrorClassification(t *testing.T) {
	t.Run("server error is retriable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).FetchSnapshot(context.Background(), "BTC-USDT")
		var apiErr *domain.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Status != http.StatusInternalServerError {
			t.Errorf("status = %d", apiErr.Status)
		}
		if !domain.IsRetriable(err) {
			t.Error("5xx must be retriable")
		}
	})

	t.Run("client error is not retriable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad symbol", http.StatusBadRequest)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).FetchSnapshot(context.Background(), "BTC-USDT")
		if domain.IsRetriable(err) {
			t.Error("4xx must not be retriable")
		}
	})

	t.Run("canceled context passes through", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestClient(srv.URL).FetchSnapshot(ctx, "BTC-USDT")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
