// Package exchange provides resilient access to the exchange's market data
// endpoints: ticker, orderbook, klines and trades.
//
// Every public fetch guarantees a value. Real data is cached for a short
// freshness window and refetches are rate limited per symbol; when the
// upstream is unreachable, times out, or returns an unusable payload, the
// client falls back to synthetic data and reports it as non-real.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"dex-assistant/internal/auth"
	"dex-assistant/internal/metrics"
	"dex-assistant/internal/model"
)

const (
	defaultCacheTTL       = 2000 * time.Millisecond
	defaultRateWindow     = 1000 * time.Millisecond
	defaultAttemptTimeout = 3000 * time.Millisecond
	defaultBackoffStep    = 500 * time.Millisecond
	defaultMaxAttempts    = 3
	orderbookMaxLevel     = 50
)

// Ticker endpoint path variants, probed in order. The public list is tried
// first; if every variant fails and credentials are configured, the private
// list is retried with signed headers.
var (
	publicTickerPaths = []string{
		"/v1/public/futures/%s",
		"/v1/public/info/%s",
		"/v1/public/market_info/%s",
	}
	privateTickerPaths = []string{
		"/v1/futures/%s",
		"/v1/market_info/%s",
	}
)

// Config configures a Client. Zero durations/counts take the defaults above.
type Config struct {
	Signer     *auth.Signer
	HTTPClient *http.Client
	Metrics    *metrics.Metrics // optional

	CacheTTL       time.Duration
	RateWindow     time.Duration
	AttemptTimeout time.Duration
	BackoffStep    time.Duration
	MaxAttempts    int
}

// Client fetches market data with caching, rate limiting, retries and mock
// fallback. It exclusively owns its cache and rate-limit state for the
// process lifetime; both are cleared only by ClearCache.
type Client struct {
	signer *auth.Signer
	http   *http.Client
	prom   *metrics.Metrics

	cache   *ttlCache
	limiter *rateLimiter

	attemptTimeout time.Duration
	backoffStep    time.Duration
	maxAttempts    int
}

// New creates a Client from cfg, filling unset fields with defaults.
func New(cfg Config) *Client {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = defaultBackoffStep
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.AttemptTimeout}
	}
	return &Client{
		signer:         cfg.Signer,
		http:           cfg.HTTPClient,
		prom:           cfg.Metrics,
		cache:          newTTLCache(cfg.CacheTTL),
		limiter:        newRateLimiter(cfg.RateWindow),
		attemptTimeout: cfg.AttemptTimeout,
		backoffStep:    cfg.BackoffStep,
		maxAttempts:    cfg.MaxAttempts,
	}
}

// FetchTicker returns the current ticker for symbol. The second return is
// true when the data came from the exchange (possibly cached), false when
// it was synthesized.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (model.Ticker, bool) {
	return fetchWithPolicy(ctx, c, "ticker", symbol,
		func(ctx context.Context) (model.Ticker, error) {
			return c.fetchTickerOnce(ctx, symbol)
		},
		func() model.Ticker { return mockTicker(symbol) },
	)
}

// FetchOrderbook returns the current orderbook for symbol (up to 50 levels
// per side). Second return as in FetchTicker.
func (c *Client) FetchOrderbook(ctx context.Context, symbol string) (model.Orderbook, bool) {
	return fetchWithPolicy(ctx, c, "orderbook", symbol,
		func(ctx context.Context) (model.Orderbook, error) {
			return c.fetchOrderbookOnce(ctx, symbol)
		},
		func() model.Orderbook { return mockOrderbook(symbol, 20) },
	)
}

// FetchKlines returns up to limit klines for symbol at the given interval
// (e.g. "1m", "5m", "1h"), oldest first. Second return as in FetchTicker.
func (c *Client) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, bool) {
	op := "klines_" + interval
	return fetchWithPolicy(ctx, c, op, symbol,
		func(ctx context.Context) ([]model.Kline, error) {
			return c.fetchKlinesOnce(ctx, symbol, interval, limit)
		},
		func() []model.Kline { return mockKlines(symbol, intervalDuration(interval), limit) },
	)
}

// FetchTrades returns up to limit recent trades for symbol, newest first.
// Second return as in FetchTicker.
func (c *Client) FetchTrades(ctx context.Context, symbol string, limit int) ([]model.Trade, bool) {
	return fetchWithPolicy(ctx, c, "trades", symbol,
		func(ctx context.Context) ([]model.Trade, error) {
			return c.fetchTradesOnce(ctx, symbol, limit)
		},
		func() []model.Trade { return mockTrades(symbol, limit) },
	)
}

// ClearCache drops all cached values and rate-limit timestamps.
func (c *Client) ClearCache() {
	c.cache.clear()
	c.limiter.reset()
}

// Stats returns cache diagnostics.
func (c *Client) Stats() CacheStats {
	return c.cache.stats()
}

// fetchWithPolicy applies the shared cache / rate-limit / retry / fallback
// policy around a single-attempt fetch function.
func fetchWithPolicy[T any](ctx context.Context, c *Client, op, symbol string, fetch func(context.Context) (T, error), mock func() T) (T, bool) {
	key := op + "_" + symbol

	if v, ok := c.cache.get(key); ok {
		if c.prom != nil {
			c.prom.CacheHits.Inc()
		}
		return v.(T), true
	}

	if !c.limiter.allow(key) {
		if c.prom != nil {
			c.prom.RateLimitBlocks.Inc()
		}
		if v, ok := c.cache.getStale(key); ok {
			return v.(T), true
		}
		if c.prom != nil {
			c.prom.MockFallbacks.WithLabelValues(op).Inc()
		}
		return mock(), false
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.prom != nil {
			c.prom.FetchAttempts.WithLabelValues(op).Inc()
		}
		actx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		start := time.Now()
		v, err := fetch(actx)
		cancel()
		if err == nil {
			if c.prom != nil {
				c.prom.FetchDur.Observe(time.Since(start).Seconds())
			}
			c.cache.set(key, v)
			return v, true
		}
		lastErr = err

		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				attempt = c.maxAttempts // parent cancelled, stop retrying
			case <-time.After(time.Duration(attempt) * c.backoffStep):
			}
		}
	}

	log.Printf("[exchange] %s %s failed after %d attempts, serving mock data: %v",
		op, symbol, c.maxAttempts, lastErr)
	if c.prom != nil {
		c.prom.FetchFailures.WithLabelValues(op).Inc()
		c.prom.MockFallbacks.WithLabelValues(op).Inc()
	}
	return mock(), false
}

// ---- single-attempt fetches ----

func (c *Client) fetchTickerOnce(ctx context.Context, symbol string) (model.Ticker, error) {
	var lastErr error

	for _, pathTmpl := range publicTickerPaths {
		path := fmt.Sprintf(pathTmpl, symbol)
		payload, err := c.getJSON(ctx, path, false)
		if err == nil {
			t, perr := parseTicker(symbol, payload)
			if perr == nil {
				return t, nil
			}
			err = perr
		}
		lastErr = err
	}

	if c.signer != nil && c.signer.Configured() {
		for _, pathTmpl := range privateTickerPaths {
			path := fmt.Sprintf(pathTmpl, symbol)
			payload, err := c.getJSON(ctx, path, true)
			if err == nil {
				t, perr := parseTicker(symbol, payload)
				if perr == nil {
					return t, nil
				}
				err = perr
			}
			lastErr = err
		}
	}

	return model.Ticker{}, fmt.Errorf("all ticker endpoints failed: %w", lastErr)
}

func (c *Client) fetchOrderbookOnce(ctx context.Context, symbol string) (model.Orderbook, error) {
	path := fmt.Sprintf("/v1/public/orderbook/%s?max_level=%d", symbol, orderbookMaxLevel)
	payload, err := c.getJSON(ctx, path, false)
	if err != nil && c.signer != nil && c.signer.Configured() {
		path = fmt.Sprintf("/v1/orderbook/%s?max_level=%d", symbol, orderbookMaxLevel)
		payload, err = c.getJSON(ctx, path, true)
	}
	if err != nil {
		return model.Orderbook{}, err
	}
	return parseOrderbook(symbol, payload)
}

func (c *Client) fetchKlinesOnce(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error) {
	path := fmt.Sprintf("/v1/public/kline?symbol=%s&type=%s&limit=%d", symbol, interval, limit)
	payload, err := c.getJSON(ctx, path, false)
	if err != nil {
		return nil, err
	}
	return parseKlines(payload)
}

func (c *Client) fetchTradesOnce(ctx context.Context, symbol string, limit int) ([]model.Trade, error) {
	path := fmt.Sprintf("/v1/public/market_trades?symbol=%s&limit=%d", symbol, limit)
	payload, err := c.getJSON(ctx, path, false)
	if err != nil {
		return nil, err
	}
	return parseTrades(symbol, payload)
}

// getJSON performs a GET against the exchange and decodes a JSON object.
// Non-2xx statuses are errors. authenticated requests carry signed headers.
func (c *Client) getJSON(ctx context.Context, path string, authenticated bool) (map[string]any, error) {
	url := c.signer.BuildURL(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if authenticated {
		// Sign the path without query parameters, matching the server side.
		signPath := path
		if i := strings.IndexByte(signPath, '?'); i >= 0 {
			signPath = signPath[:i]
		}
		for k, v := range c.signer.GenerateHeaders(http.MethodGet, signPath, "") {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return payload, nil
}

// ---- payload parsing ----

// parseTicker resolves ticker fields through the alias tables. A parsed
// ticker with price=0 and volume=0 is rejected as a schema mismatch.
func parseTicker(symbol string, payload map[string]any) (model.Ticker, error) {
	m := unwrapData(payload)

	price, _ := pickFloat(m, priceAliases)
	volume, _ := pickFloat(m, volumeAliases)
	if price == 0 && volume == 0 {
		return model.Ticker{}, fmt.Errorf("ticker %s: zero price and volume, schema mismatch", symbol)
	}

	open, _ := pickFloat(m, openAliases)
	high, _ := pickFloat(m, highAliases)
	low, _ := pickFloat(m, lowAliases)

	change := price - open
	changePct := 0.0
	if open != 0 {
		changePct = change / open * 100
	}

	return model.Ticker{
		Symbol:    symbol,
		Price:     price,
		Open24h:   open,
		High24h:   high,
		Low24h:    low,
		Volume24h: volume,
		Change24h: change,
		ChangePct: changePct,
		TS:        time.Now().UTC(),
	}, nil
}

func parseOrderbook(symbol string, payload map[string]any) (model.Orderbook, error) {
	m := unwrapData(payload)

	bids, asks := m["bids"], m["asks"]
	bidRows, _ := bids.([]any)
	askRows, _ := asks.([]any)
	if len(bidRows) == 0 && len(askRows) == 0 {
		return model.Orderbook{}, fmt.Errorf("orderbook %s: no levels in payload", symbol)
	}

	ob := model.Orderbook{
		Symbol: symbol,
		Bids:   parseLevels(bidRows),
		Asks:   parseLevels(askRows),
		TS:     time.Now().UTC(),
	}

	// Normalize ordering: bids descending, asks ascending.
	sort.Slice(ob.Bids, func(i, j int) bool { return ob.Bids[i].Price > ob.Bids[j].Price })
	sort.Slice(ob.Asks, func(i, j int) bool { return ob.Asks[i].Price < ob.Asks[j].Price })
	return ob, nil
}

// parseLevels accepts both {"price":..,"quantity":..} objects and
// [price, quantity] pairs.
func parseLevels(rows []any) []model.OrderbookLevel {
	levels := make([]model.OrderbookLevel, 0, len(rows))
	for _, row := range rows {
		switch r := row.(type) {
		case map[string]any:
			price, okP := pickFloat(r, []string{"price", "p"})
			qty, okQ := pickFloat(r, []string{"quantity", "qty", "size", "q"})
			if okP && okQ && qty >= 0 {
				levels = append(levels, model.OrderbookLevel{Price: price, Quantity: qty})
			}
		case []any:
			if len(r) < 2 {
				continue
			}
			price, okP := coerceFloat(r[0])
			qty, okQ := coerceFloat(r[1])
			if okP && okQ && qty >= 0 {
				levels = append(levels, model.OrderbookLevel{Price: price, Quantity: qty})
			}
		}
	}
	return levels
}

func parseKlines(payload map[string]any) ([]model.Kline, error) {
	rws := rows(payload, "rows", "klines", "list")
	if rws == nil {
		return nil, fmt.Errorf("klines: no rows in payload")
	}

	klines := make([]model.Kline, 0, len(rws))
	for _, row := range rws {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		open, _ := pickFloat(m, klineOpenAliases)
		high, _ := pickFloat(m, klineHighAliases)
		low, _ := pickFloat(m, klineLowAliases)
		cls, _ := pickFloat(m, klineCloseAliases)
		vol, _ := pickFloat(m, klineVolumeAliases)
		tsMs, _ := pickFloat(m, klineTSAliases)
		klines = append(klines, model.Kline{
			TS:     time.UnixMilli(int64(tsMs)).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: vol,
		})
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("klines: no parseable rows")
	}

	// Indicator math expects oldest → newest.
	sort.Slice(klines, func(i, j int) bool { return klines[i].TS.Before(klines[j].TS) })
	return klines, nil
}

func parseTrades(symbol string, payload map[string]any) ([]model.Trade, error) {
	rws := rows(payload, "rows", "trades", "list")
	if rws == nil {
		return nil, fmt.Errorf("trades: no rows in payload")
	}

	trades := make([]model.Trade, 0, len(rws))
	for _, row := range rws {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		id, _ := pickString(m, tradeIDAliases)
		price, _ := pickFloat(m, tradePriceAliases)
		qty, _ := pickFloat(m, tradeQtyAliases)
		sideStr, _ := pickString(m, tradeSideAliases)
		tsMs, _ := pickFloat(m, tradeTSAliases)

		side := model.TradeBuy
		if strings.EqualFold(sideStr, "sell") {
			side = model.TradeSell
		}
		trades = append(trades, model.Trade{
			ID:       id,
			Symbol:   symbol,
			Price:    price,
			Quantity: qty,
			Side:     side,
			TS:       time.UnixMilli(int64(tsMs)).UTC(),
		})
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("trades: no parseable rows")
	}
	return trades, nil
}

// intervalDuration maps kline interval labels to durations for mock series.
func intervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}
