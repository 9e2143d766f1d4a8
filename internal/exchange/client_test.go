package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dex-assistant/internal/auth"
)

// newTestClient wires a Client against a test server with fast retry timing.
func newTestClient(ts *httptest.Server, cacheTTL, rateWindow time.Duration) *Client {
	return New(Config{
		Signer:         auth.NewSigner(ts.URL, "", "", ""),
		HTTPClient:     ts.Client(),
		CacheTTL:       cacheTTL,
		RateWindow:     rateWindow,
		AttemptTimeout: 500 * time.Millisecond,
		BackoffStep:    time.Millisecond,
		MaxAttempts:    3,
	})
}

func tickerJSON(price, volume float64) string {
	return fmt.Sprintf(`{"success":true,"data":{"last_price":%g,"24h_open":%g,"24h_high":%g,"24h_low":%g,"24h_volume":%g}}`,
		price, price*0.98, price*1.02, price*0.97, volume)
}

func TestFetchTickerCacheIdempotence(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, tickerJSON(65000, 12345))
	}))
	defer ts.Close()

	c := newTestClient(ts, 2*time.Second, time.Second)

	first, real := c.FetchTicker(context.Background(), "PERP_BTC_USDC")
	if !real {
		t.Fatal("first fetch should be real data")
	}
	second, real := c.FetchTicker(context.Background(), "PERP_BTC_USDC")
	if !real {
		t.Fatal("cached fetch should still be real data")
	}

	if first != second {
		t.Errorf("cached ticker differs: first=%+v second=%+v", first, second)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected exactly 1 upstream request, got %d", n)
	}
}

func TestFetchTickerRateLimitServesStale(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, tickerJSON(65000, 12345))
	}))
	defer ts.Close()

	// Cache expires almost immediately but the rate window stays open, so
	// the second call must not reach the network.
	c := newTestClient(ts, time.Millisecond, time.Hour)

	first, _ := c.FetchTicker(context.Background(), "PERP_BTC_USDC")
	time.Sleep(5 * time.Millisecond)

	second, real := c.FetchTicker(context.Background(), "PERP_BTC_USDC")
	if !real {
		t.Fatal("rate-limited fetch with a cached value should report real data")
	}
	if first != second {
		t.Errorf("rate-limited fetch should serve the stale cached value")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected exactly 1 upstream request, got %d", n)
	}
}

func TestFetchTickerRateLimitWithoutCacheFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := newTestClient(ts, time.Millisecond, time.Hour)

	// First call burns the rate window and fails to populate the cache.
	c.FetchTicker(context.Background(), "PERP_SOL_USDC")

	tk, real := c.FetchTicker(context.Background(), "PERP_SOL_USDC")
	if real {
		t.Fatal("expected mock data when rate limited with empty cache")
	}
	if tk.Price <= 0 {
		t.Errorf("mock ticker price must be positive, got %g", tk.Price)
	}
}

func TestFetchTickerUnreachableFallsBackToMock(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer ts.Close()

	c := newTestClient(ts, 2*time.Second, time.Second)

	tk, real := c.FetchTicker(context.Background(), "PERP_BTC_USDC")
	if real {
		t.Fatal("expected non-real data from unreachable upstream")
	}
	// Mock prices stay within ±3% of the 65000 base.
	if tk.Price < 65000*0.97 || tk.Price > 65000*1.03 {
		t.Errorf("mock price %g outside ±3%% of base 65000", tk.Price)
	}
	if tk.Symbol != "PERP_BTC_USDC" {
		t.Errorf("symbol: got %q", tk.Symbol)
	}
}

func TestFetchTickerEndpointProbing(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		// Only the market_info variant answers.
		if strings.HasPrefix(r.URL.Path, "/v1/public/market_info/") {
			fmt.Fprint(w, tickerJSON(3500, 999))
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	c := newTestClient(ts, 2*time.Second, time.Second)

	tk, real := c.FetchTicker(context.Background(), "PERP_ETH_USDC")
	if !real {
		t.Fatal("expected real data from the surviving endpoint variant")
	}
	if tk.Price != 3500 {
		t.Errorf("price: got %g, want 3500", tk.Price)
	}
	want := []string{
		"/v1/public/futures/PERP_ETH_USDC",
		"/v1/public/info/PERP_ETH_USDC",
		"/v1/public/market_info/PERP_ETH_USDC",
	}
	if len(paths) != len(want) {
		t.Fatalf("probed paths: got %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("probe order[%d]: got %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestFetchTickerZeroValuedPayloadRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Parseable but zero price AND volume: schema mismatch, not a market.
		fmt.Fprint(w, `{"data":{"last_price":0,"24h_volume":0}}`)
	}))
	defer ts.Close()

	c := newTestClient(ts, 2*time.Second, time.Second)

	_, real := c.FetchTicker(context.Background(), "PERP_BTC_USDC")
	if real {
		t.Fatal("zero-valued ticker must trigger mock fallback")
	}
}

func TestFetchKlinesParsesAndOrders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Newest-first upstream; client must reorder oldest-first.
		fmt.Fprint(w, `{"success":true,"data":{"rows":[
			{"open":101,"high":103,"low":100,"close":102,"volume":5,"start_timestamp":120000},
			{"open":100,"high":102,"low":99,"close":101,"volume":4,"start_timestamp":60000}
		]}}`)
	}))
	defer ts.Close()

	c := newTestClient(ts, 2*time.Second, time.Second)

	klines, real := c.FetchKlines(context.Background(), "PERP_BTC_USDC", "1m", 2)
	if !real {
		t.Fatal("expected real klines")
	}
	if len(klines) != 2 {
		t.Fatalf("expected 2 klines, got %d", len(klines))
	}
	if !klines[0].TS.Before(klines[1].TS) {
		t.Error("klines not in chronological order")
	}
	if klines[0].Close != 101 || klines[1].Close != 102 {
		t.Errorf("closes: got %g, %g", klines[0].Close, klines[1].Close)
	}
}

func TestFetchOrderbookParsesPairsAndObjects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{
			"bids":[{"price":99,"quantity":2},{"price":100,"quantity":1}],
			"asks":[[101,3],[100.5,4]]
		}}`)
	}))
	defer ts.Close()

	c := newTestClient(ts, 2*time.Second, time.Second)

	ob, real := c.FetchOrderbook(context.Background(), "PERP_BTC_USDC")
	if !real {
		t.Fatal("expected real orderbook")
	}
	if ob.Bids[0].Price != 100 || ob.Bids[1].Price != 99 {
		t.Errorf("bids not descending: %+v", ob.Bids)
	}
	if ob.Asks[0].Price != 100.5 || ob.Asks[1].Price != 101 {
		t.Errorf("asks not ascending: %+v", ob.Asks)
	}
}

func TestFetchTradesParses(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"rows":[
			{"executed_price":65001,"executed_quantity":0.5,"side":"BUY","executed_timestamp":1700000000000},
			{"executed_price":64999,"executed_quantity":1.25,"side":"SELL","executed_timestamp":1700000001000}
		]}}`)
	}))
	defer ts.Close()

	c := newTestClient(ts, 2*time.Second, time.Second)

	trades, real := c.FetchTrades(context.Background(), "PERP_BTC_USDC", 2)
	if !real {
		t.Fatal("expected real trades")
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].Price != 65001 || trades[0].Side != "buy" {
		t.Errorf("first trade: %+v", trades[0])
	}
	if trades[1].Side != "sell" {
		t.Errorf("second trade side: %q", trades[1].Side)
	}
}

func TestClearCacheForcesRefetch(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, tickerJSON(150, 777))
	}))
	defer ts.Close()

	c := newTestClient(ts, time.Hour, time.Millisecond)

	c.FetchTicker(context.Background(), "PERP_SOL_USDC")
	c.ClearCache()
	time.Sleep(2 * time.Millisecond)
	c.FetchTicker(context.Background(), "PERP_SOL_USDC")

	if n := hits.Load(); n != 2 {
		t.Errorf("expected 2 upstream requests after ClearCache, got %d", n)
	}

	stats := c.Stats()
	if stats.Entries != 1 {
		t.Errorf("expected 1 cache entry, got %d", stats.Entries)
	}
}
