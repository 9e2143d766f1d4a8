package indicator

import (
	"context"
	"log"
	"time"

	"dex-assistant/internal/exchange"
	"dex-assistant/internal/model"
)

const (
	snapshotInterval = "1m"
	snapshotKlines   = 200
	minKlines        = 50

	rsiPeriod = 14
	atrPeriod = 14
)

// KlineSource yields kline history for a symbol. The boolean reports
// whether the data came from the exchange or was synthesized.
type KlineSource interface {
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, bool)
}

// Snapshot computes the full indicator set for symbol from 200 one-minute
// klines. When fewer than 50 klines are available the series is replaced
// with a synthetic one around the symbol's base price; the boolean return
// is true only for a snapshot computed from sufficient real data.
func Snapshot(ctx context.Context, src KlineSource, symbol string) (model.IndicatorSet, bool) {
	klines, real := src.FetchKlines(ctx, symbol, snapshotInterval, snapshotKlines)
	if len(klines) < minKlines {
		log.Printf("[indicator] %s: only %d klines (<%d), computing from synthetic series",
			symbol, len(klines), minKlines)
		klines = exchange.SyntheticKlines(symbol, time.Minute, snapshotKlines)
		real = false
	}
	return compute(klines), real
}

// compute derives every indicator from one kline window.
func compute(klines []model.Kline) model.IndicatorSet {
	closes := model.Closes(klines)
	price := closes[len(closes)-1]

	sma20 := SMA(closes, 20)
	sma50 := SMA(closes, 50)
	support, resistance := SupportResistance(klines)

	return model.IndicatorSet{
		RSI:        RSI(closes, rsiPeriod),
		MACD:       MACDOf(closes),
		EMA20:      EMA(closes, 20),
		EMA50:      EMA(closes, 50),
		SMA20:      sma20,
		ATR:        ATR(klines, atrPeriod),
		VWAP:       VWAP(klines),
		Trend:      Classify(price, sma20, sma50),
		Support:    support,
		Resistance: resistance,
		Price:      price,
	}
}

// Neutral returns the placeholder indicator set used when no computation
// is possible at all: neutral RSI, zeroed MACD and averages.
func Neutral() model.IndicatorSet {
	return model.IndicatorSet{
		RSI:   50,
		Trend: model.TrendNeutral,
	}
}
