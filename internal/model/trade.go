package model

import "time"

// TradeSide is the aggressor side of an executed trade.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Trade is a single executed trade reported by the exchange.
type Trade struct {
	ID       string    `json:"id"`
	Symbol   string    `json:"symbol"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Side     TradeSide `json:"side"`
	TS       time.Time `json:"ts"`
}
