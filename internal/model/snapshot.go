package model

import "time"

// Trend classifies short-term market direction.
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// MACD holds the MACD line, signal line and histogram.
type MACD struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// IndicatorSet is the full set of technical indicators computed for a symbol.
// RSI is clamped to [0,100].
type IndicatorSet struct {
	RSI        float64 `json:"rsi"`
	MACD       MACD    `json:"macd"`
	EMA20      float64 `json:"ema20"`
	EMA50      float64 `json:"ema50"`
	SMA20      float64 `json:"sma20"`
	ATR        float64 `json:"atr"`
	VWAP       float64 `json:"vwap"`
	Trend      Trend   `json:"trend"`
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
	Price      float64 `json:"price"`
}

// MarketSnapshot combines ticker and top-of-book state for one symbol.
// IsRealData is false only when every real-data attempt failed and the
// values were synthesized.
type MarketSnapshot struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Volume24h  float64   `json:"volume24h"`
	Change24h  float64   `json:"change24h"` // percent
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Orderbook  Orderbook `json:"orderbook"`
	TS         time.Time `json:"timestamp"`
	IsRealData bool      `json:"isRealData"`
}
