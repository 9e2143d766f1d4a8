package model

import "time"

// OrderbookLevel is one price level of an orderbook side.
type OrderbookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Orderbook holds bid/ask ladders for one symbol.
// Bids are sorted descending by price, asks ascending.
type Orderbook struct {
	Symbol string           `json:"symbol"`
	Bids   []OrderbookLevel `json:"bids"`
	Asks   []OrderbookLevel `json:"asks"`
	TS     time.Time        `json:"ts"`
}

// Top returns a copy of the orderbook truncated to n levels per side.
func (ob Orderbook) Top(n int) Orderbook {
	out := Orderbook{Symbol: ob.Symbol, TS: ob.TS}
	out.Bids = append(out.Bids, ob.Bids[:min(n, len(ob.Bids))]...)
	out.Asks = append(out.Asks, ob.Asks[:min(n, len(ob.Asks))]...)
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
