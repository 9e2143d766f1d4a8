package assistant

import (
	"fmt"
	"strings"

	"dex-assistant/internal/model"
)

const imbalanceThreshold = 0.1

// Imbalance computes the normalized bid/ask quantity difference
// (sumBids - sumAsks) / (sumBids + sumAsks). Returns 0 when both sides
// are empty.
func Imbalance(ob model.Orderbook) float64 {
	var bidQty, askQty float64
	for _, l := range ob.Bids {
		bidQty += l.Quantity
	}
	for _, l := range ob.Asks {
		askQty += l.Quantity
	}
	total := bidQty + askQty
	if total == 0 {
		return 0
	}
	return (bidQty - askQty) / total
}

// ClassifyImbalance labels an imbalance value: above +0.1 is bullish
// pressure, below -0.1 bearish, else neutral.
func ClassifyImbalance(imbalance float64) string {
	switch {
	case imbalance > imbalanceThreshold:
		return "Bullish"
	case imbalance < -imbalanceThreshold:
		return "Bearish"
	default:
		return "Neutral"
	}
}

// BulletAnalysis derives a short bullet-point reading of the market from
// the snapshot and indicators.
func BulletAnalysis(snap model.MarketSnapshot, ind model.IndicatorSet) string {
	var b strings.Builder

	if ind.Price > ind.EMA20 && ind.EMA20 > ind.EMA50 {
		b.WriteString("- Price is above EMA20 and EMA50: bullish alignment\n")
	} else if ind.Price < ind.EMA20 && ind.EMA20 < ind.EMA50 {
		b.WriteString("- Price is below EMA20 and EMA50: bearish alignment\n")
	} else {
		b.WriteString("- Price is mixed relative to EMA20/EMA50: no clear trend\n")
	}

	switch {
	case ind.RSI > 70:
		fmt.Fprintf(&b, "- RSI %.1f: overbought territory\n", ind.RSI)
	case ind.RSI < 30:
		fmt.Fprintf(&b, "- RSI %.1f: oversold territory\n", ind.RSI)
	default:
		fmt.Fprintf(&b, "- RSI %.1f: neutral momentum\n", ind.RSI)
	}

	if ind.MACD.Histogram > 0 {
		b.WriteString("- MACD histogram positive: upward momentum\n")
	} else if ind.MACD.Histogram < 0 {
		b.WriteString("- MACD histogram negative: downward momentum\n")
	} else {
		b.WriteString("- MACD histogram flat\n")
	}

	if snap.Volume24h > 1_000_000 {
		fmt.Fprintf(&b, "- High 24h volume (%.0f): strong participation\n", snap.Volume24h)
	} else {
		fmt.Fprintf(&b, "- Modest 24h volume (%.0f)\n", snap.Volume24h)
	}

	return b.String()
}

// ContextBlock assembles the system context handed to the completion
// provider: market state, indicators, orderbook pressure, the bullet
// analysis and a provenance disclosure for synthetic data.
func ContextBlock(symbol string, snap model.MarketSnapshot, ind model.IndicatorSet, indReal bool) string {
	imb := Imbalance(snap.Orderbook)

	var b strings.Builder
	b.WriteString("You are a trading assistant for a decentralized perpetuals exchange.\n")
	b.WriteString("Answer the user's question using the market context below. Be concise and concrete.\n\n")

	fmt.Fprintf(&b, "Market: %s\n", symbol)
	fmt.Fprintf(&b, "Price: %.6f\n", snap.Price)
	fmt.Fprintf(&b, "24h change: %.2f%%  24h volume: %.2f\n", snap.Change24h, snap.Volume24h)
	fmt.Fprintf(&b, "24h range: %.6f - %.6f\n\n", snap.Low, snap.High)

	fmt.Fprintf(&b, "RSI(14): %.2f\n", ind.RSI)
	fmt.Fprintf(&b, "MACD: %.6f  signal: %.6f  histogram: %.6f\n", ind.MACD.MACD, ind.MACD.Signal, ind.MACD.Histogram)
	fmt.Fprintf(&b, "EMA20: %.6f  EMA50: %.6f  SMA20: %.6f\n", ind.EMA20, ind.EMA50, ind.SMA20)
	fmt.Fprintf(&b, "ATR(14): %.6f  VWAP: %.6f\n", ind.ATR, ind.VWAP)
	fmt.Fprintf(&b, "Trend: %s  Support: %.6f  Resistance: %.6f\n\n", ind.Trend, ind.Support, ind.Resistance)

	fmt.Fprintf(&b, "Orderbook imbalance: %.3f (%s pressure)\n\n", imb, ClassifyImbalance(imb))

	b.WriteString("Quick read:\n")
	b.WriteString(BulletAnalysis(snap, ind))

	if !snap.IsRealData || !indReal {
		b.WriteString("\nNote: live exchange data was unavailable; the figures above are simulated estimates. Disclose this if the user asks about current prices.\n")
	}
	return b.String()
}
