package model

import "time"

// Ticker is a 24h rolling market summary for one perp symbol.
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Open24h   float64   `json:"open_24h"`
	High24h   float64   `json:"high_24h"`
	Low24h    float64   `json:"low_24h"`
	Volume24h float64   `json:"volume_24h"`
	Change24h float64   `json:"change_24h"`     // absolute
	ChangePct float64   `json:"change_24h_pct"` // percent
	TS        time.Time `json:"ts"`
}
