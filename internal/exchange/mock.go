package exchange

import (
	"fmt"
	"math/rand"
	"time"

	"dex-assistant/internal/model"
)

// basePrices anchors synthetic data per symbol. Unknown symbols fall back
// to defaultBasePrice so mock generation never fails.
var basePrices = map[string]float64{
	"PERP_BTC_USDC":  65000,
	"PERP_ETH_USDC":  3500,
	"PERP_SOL_USDC":  150,
	"PERP_HYPE_USDC": 0.002,
	"PERP_ARB_USDC":  1.2,
	"PERP_OP_USDC":   2.4,
}

const defaultBasePrice = 100

// BasePrice returns the synthetic anchor price for a symbol.
func BasePrice(symbol string) float64 {
	if p, ok := basePrices[symbol]; ok {
		return p
	}
	return defaultBasePrice
}

// mockTicker synthesizes a ticker within ±3% of the symbol's base price.
func mockTicker(symbol string) model.Ticker {
	base := BasePrice(symbol)
	price := base * (1 + (rand.Float64()-0.5)*0.06)
	open := base * (1 + (rand.Float64()-0.5)*0.06)
	high := maxF(price, open) * (1 + rand.Float64()*0.01)
	low := minF(price, open) * (1 - rand.Float64()*0.01)

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
		Volume24h: base * 1000 * (0.5 + rand.Float64()),
		Change24h: change,
		ChangePct: changePct,
		TS:        time.Now().UTC(),
	}
}

// mockOrderbook synthesizes a depth-level book around the base price with
// bids descending and asks ascending.
func mockOrderbook(symbol string, depth int) model.Orderbook {
	mid := BasePrice(symbol) * (1 + (rand.Float64()-0.5)*0.06)
	step := mid * 0.0005

	ob := model.Orderbook{
		Symbol: symbol,
		Bids:   make([]model.OrderbookLevel, 0, depth),
		Asks:   make([]model.OrderbookLevel, 0, depth),
		TS:     time.Now().UTC(),
	}
	for i := 0; i < depth; i++ {
		ob.Bids = append(ob.Bids, model.OrderbookLevel{
			Price:    mid - step*float64(i+1),
			Quantity: rand.Float64() * 10,
		})
		ob.Asks = append(ob.Asks, model.OrderbookLevel{
			Price:    mid + step*float64(i+1),
			Quantity: rand.Float64() * 10,
		})
	}
	return ob
}

// SyntheticKlines synthesizes a random-walk OHLCV series (oldest → newest)
// around the symbol's base price. Exported for consumers that need a
// stand-in series when real history is too short.
func SyntheticKlines(symbol string, interval time.Duration, limit int) []model.Kline {
	return mockKlines(symbol, interval, limit)
}

// mockKlines synthesizes a random-walk OHLCV series (oldest → newest)
// ending near the symbol's base price.
func mockKlines(symbol string, interval time.Duration, limit int) []model.Kline {
	base := BasePrice(symbol)
	klines := make([]model.Kline, 0, limit)
	price := base * (1 + (rand.Float64()-0.5)*0.04)
	start := time.Now().UTC().Add(-interval * time.Duration(limit))

	for i := 0; i < limit; i++ {
		open := price
		price = price * (1 + (rand.Float64()-0.5)*0.004)
		high := maxF(open, price) * (1 + rand.Float64()*0.001)
		low := minF(open, price) * (1 - rand.Float64()*0.001)
		klines = append(klines, model.Kline{
			TS:     start.Add(interval * time.Duration(i)),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: base * (10 + rand.Float64()*90),
		})
	}
	return klines
}

// mockTrades synthesizes recent trades around the base price.
func mockTrades(symbol string, limit int) []model.Trade {
	base := BasePrice(symbol)
	now := time.Now().UTC()
	trades := make([]model.Trade, 0, limit)
	for i := 0; i < limit; i++ {
		side := model.TradeBuy
		if rand.Float64() < 0.5 {
			side = model.TradeSell
		}
		trades = append(trades, model.Trade{
			ID:       fmt.Sprintf("mock-%d-%d", now.UnixMilli(), i),
			Symbol:   symbol,
			Price:    base * (1 + (rand.Float64()-0.5)*0.002),
			Quantity: rand.Float64() * 5,
			Side:     side,
			TS:       now.Add(-time.Duration(i) * time.Second),
		})
	}
	return trades
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
