// Package alerts turns indicator and market snapshots into human-readable
// alert messages using fixed threshold rules.
package alerts

import (
	"context"
	"fmt"
	"time"

	"dex-assistant/internal/indicator"
	"dex-assistant/internal/market"
	"dex-assistant/internal/metrics"
	"dex-assistant/internal/model"
)

const (
	rsiOverbought = 70
	rsiOversold   = 30
	momentumPct   = 5
)

// Generator evaluates threshold rules for a symbol.
type Generator struct {
	agg  *market.Aggregator
	prom *metrics.Metrics // optional
}

// New creates a generator.
func New(agg *market.Aggregator, prom *metrics.Metrics) *Generator {
	return &Generator{agg: agg, prom: prom}
}

// Generate fetches current state for symbol and returns zero or more
// alerts. Internal failures are swallowed upstream (every fetch degrades
// to synthetic data), so the result is always usable; an empty slice
// means no rule fired.
func (g *Generator) Generate(ctx context.Context, symbol string) []model.Alert {
	snap := g.agg.Snapshot(ctx, symbol)
	ind, _ := indicator.Snapshot(ctx, g.agg.Client(), symbol)
	out := Evaluate(symbol, snap, ind)
	if g.prom != nil {
		g.prom.AlertsGenerated.Add(float64(len(out)))
	}
	return out
}

// Evaluate applies the threshold rules to already-fetched state.
func Evaluate(symbol string, snap model.MarketSnapshot, ind model.IndicatorSet) []model.Alert {
	var out []model.Alert
	now := time.Now().UTC()

	add := func(typ model.AlertType, format string, args ...any) {
		out = append(out, model.Alert{
			ID:      fmt.Sprintf("%s-%d-%d", symbol, now.UnixMilli(), len(out)),
			Message: fmt.Sprintf(format, args...),
			Type:    typ,
			TS:      now,
		})
	}

	switch {
	case ind.RSI > rsiOverbought:
		add(model.AlertWarning, "%s RSI at %.1f: overbought, watch for a pullback", symbol, ind.RSI)
	case ind.RSI < rsiOversold:
		add(model.AlertWarning, "%s RSI at %.1f: oversold, possible bounce zone", symbol, ind.RSI)
	}

	if ind.MACD.Histogram > 0 && ind.MACD.MACD > ind.MACD.Signal {
		add(model.AlertSuccess, "%s MACD bullish crossover: momentum turning up", symbol)
	} else if ind.MACD.Histogram < 0 && ind.MACD.MACD < ind.MACD.Signal {
		add(model.AlertInfo, "%s MACD bearish crossover: momentum turning down", symbol)
	}

	if ind.Price > ind.EMA20 && ind.EMA20 > ind.EMA50 {
		add(model.AlertSuccess, "%s in a strong uptrend: price above EMA20 above EMA50", symbol)
	} else if ind.Price < ind.EMA20 && ind.EMA20 < ind.EMA50 {
		add(model.AlertWarning, "%s in a strong downtrend: price below EMA20 below EMA50", symbol)
	}

	if snap.Change24h > momentumPct {
		add(model.AlertSuccess, "%s up %.1f%% in 24h: strong upward momentum", symbol, snap.Change24h)
	} else if snap.Change24h < -momentumPct {
		add(model.AlertWarning, "%s down %.1f%% in 24h: strong downward momentum", symbol, snap.Change24h)
	}

	return out
}
