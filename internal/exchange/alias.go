package exchange

import (
	"encoding/json"
	"strconv"
)

// Upstream response schemas vary between endpoint variants, so every field
// is resolved through an explicit ordered alias list: the first alias
// present in the payload wins. Keeping the tables in one place makes the
// "unknown upstream schema" tolerance testable.

var (
	priceAliases  = []string{"price", "last_price", "lastPrice", "close", "mark_price", "index_price"}
	openAliases   = []string{"24h_open", "open_24h", "open"}
	highAliases   = []string{"24h_high", "high_24h", "high"}
	lowAliases    = []string{"24h_low", "low_24h", "low"}
	volumeAliases = []string{"24h_volume", "volume_24h", "volume", "24h_amount", "amount"}

	klineOpenAliases   = []string{"open", "o"}
	klineHighAliases   = []string{"high", "h"}
	klineLowAliases    = []string{"low", "l"}
	klineCloseAliases  = []string{"close", "c"}
	klineVolumeAliases = []string{"volume", "v", "amount"}
	klineTSAliases     = []string{"start_timestamp", "startTime", "timestamp", "ts", "t"}

	tradeIDAliases    = []string{"id", "trade_id", "tradeId"}
	tradePriceAliases = []string{"executed_price", "price", "p"}
	tradeQtyAliases   = []string{"executed_quantity", "quantity", "qty", "q"}
	tradeSideAliases  = []string{"side", "direction"}
	tradeTSAliases    = []string{"executed_timestamp", "timestamp", "ts", "t"}
)

// pickFloat resolves the first alias present in m and coerces it to float64.
// Accepts JSON numbers and numeric strings.
func pickFloat(m map[string]any, aliases []string) (float64, bool) {
	for _, key := range aliases {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := coerceFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// pickString resolves the first alias present in m as a string.
func pickString(m map[string]any, aliases []string) (string, bool) {
	for _, key := range aliases {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return t, true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		case json.Number:
			return t.String(), true
		}
	}
	return "", false
}

func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}

// unwrapData peels the {"success":true,"data":{...}} envelope some endpoint
// variants use. Returns the innermost object.
func unwrapData(m map[string]any) map[string]any {
	for {
		inner, ok := m["data"].(map[string]any)
		if !ok {
			return m
		}
		m = inner
	}
}

// rows extracts an array payload under any of the given keys, looking both
// at the top level and inside a "data" envelope.
func rows(m map[string]any, keys ...string) []any {
	for _, scope := range []map[string]any{m, unwrapData(m)} {
		for _, key := range keys {
			if arr, ok := scope[key].([]any); ok {
				return arr
			}
		}
	}
	return nil
}
