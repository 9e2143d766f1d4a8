package model

import "time"

// Position is an open perp position for a wallet.
type Position struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // LONG or SHORT
	Size       float64   `json:"size"`
	EntryPrice float64   `json:"entryPrice"`
	MarkPrice  float64   `json:"markPrice"`
	PnL        float64   `json:"pnl"`
	PnLPct     float64   `json:"pnlPct"`
	OpenedAt   time.Time `json:"openedAt"`
}
