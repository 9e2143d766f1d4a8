// Package indicator provides technical indicator calculations over ordered
// price/volume series (oldest → newest).
//
// All functions are pure and total: short or empty inputs produce neutral
// values rather than errors, because callers feed potentially degraded
// upstream data and must always get a usable snapshot.
package indicator

import (
	"sort"

	"dex-assistant/internal/model"
)

// RSI computes the Relative Strength Index using Wilder's smoothing.
// The first `period` deltas seed the averages as simple means; subsequent
// deltas apply avg = (avg*(period-1) + new) / period. The result is clamped
// to [0,100]. Fewer than period+1 samples returns the neutral 50.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period + 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return clamp(100-100/(1+rs), 0, 100)
}

// EMA computes the Exponential Moving Average: the first `period` values
// seed a simple mean, then ema = value*k + ema*(1-k) with k = 2/(period+1).
// Fewer than period samples returns the last value, or 0 for an empty series.
func EMA(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if period <= 0 || len(values) < period {
		return values[len(values)-1]
	}

	var ema float64
	for i := 0; i < period; i++ {
		ema += values[i]
	}
	ema /= float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = values[i]*k + ema*(1-k)
	}
	return ema
}

// SMA computes the mean of the last `period` values. Fewer samples returns
// the last value, or 0 for an empty series.
func SMA(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if period <= 0 || len(values) < period {
		return values[len(values)-1]
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// MACDOf computes MACD = EMA(12) - EMA(26) over the close series.
//
// The signal line is EMA(9) of a single-element series holding only the
// current MACD value, which degenerates to the MACD value itself and pins
// the histogram to ~0. This mirrors the established behaviour the front end
// renders against; a true rolling signal would need MACD history per symbol.
func MACDOf(prices []float64) model.MACD {
	macd := EMA(prices, 12) - EMA(prices, 26)
	signal := EMA([]float64{macd}, 9)
	return model.MACD{
		MACD:      macd,
		Signal:    signal,
		Histogram: macd - signal,
	}
}

// ATR computes the Average True Range over klines: per-bar true range is
// max(high-low, |high-prevClose|, |low-prevClose|), averaged over `period`
// bars. With fewer than period true-range samples it returns the last true
// range, or 0 when no true range can be formed.
func ATR(klines []model.Kline, period int) float64 {
	if len(klines) < 2 {
		return 0
	}
	trs := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		k, prev := klines[i], klines[i-1]
		tr := k.High - k.Low
		if hc := abs(k.High - prev.Close); hc > tr {
			tr = hc
		}
		if lc := abs(k.Low - prev.Close); lc > tr {
			tr = lc
		}
		trs = append(trs, tr)
	}
	return SMA(trs, period)
}

// VWAP computes the Volume-Weighted Average Price over the whole window
// using typical price (high+low+close)/3. Zero total volume returns the
// last close.
func VWAP(klines []model.Kline) float64 {
	if len(klines) == 0 {
		return 0
	}
	var pv, vol float64
	for _, k := range klines {
		typical := (k.High + k.Low + k.Close) / 3
		pv += typical * k.Volume
		vol += k.Volume
	}
	if vol == 0 {
		return klines[len(klines)-1].Close
	}
	return pv / vol
}

// Classify labels the trend: bullish when price > shortMA and
// shortMA > longMA, bearish when both comparisons reverse, else neutral.
func Classify(price, shortMA, longMA float64) model.Trend {
	switch {
	case price > shortMA && shortMA > longMA:
		return model.TrendBullish
	case price < shortMA && shortMA < longMA:
		return model.TrendBearish
	default:
		return model.TrendNeutral
	}
}

// SupportResistance estimates levels from the window: resistance is the
// high at the 10th percentile rank of highs sorted descending, support the
// low at the 10th percentile rank of lows sorted ascending.
func SupportResistance(klines []model.Kline) (support, resistance float64) {
	if len(klines) == 0 {
		return 0, 0
	}
	highs := make([]float64, len(klines))
	lows := make([]float64, len(klines))
	for i, k := range klines {
		highs[i] = k.High
		lows[i] = k.Low
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(highs)))
	sort.Float64s(lows)

	idx := len(klines) / 10
	return lows[idx], highs[idx]
}

// Breakout reports a resistance breakout: the previous price was at or
// below resistance and the current price is above it.
func Breakout(prevPrice, price, resistance float64) bool {
	return prevPrice <= resistance && price > resistance
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
