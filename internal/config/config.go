// Package config loads application configuration from environment variables
// through viper, with defaults for everything that is not a credential.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// Exchange REST API
	ExchangeBaseURL string
	AccountID       string
	OrderlyKey      string
	OrderlySecret   string

	// Completion provider (OpenAI-compatible chat endpoint)
	CompletionURL   string
	CompletionKey   string
	CompletionModel string

	// HTTP / WS listener and Prometheus endpoint
	ListenAddr  string
	MetricsAddr string

	// Market data tuning
	CacheTTL   time.Duration
	RateWindow time.Duration

	// Broadcast cadence
	PollInterval  time.Duration
	AlertInterval time.Duration

	// Symbols preloaded by the poller diagnostics
	Symbols string
}

// Load reads configuration from environment variables with sensible defaults.
// Credentials default to empty; the exchange client falls back to public
// endpoints and synthetic data when they are missing.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("EXCHANGE_BASE_URL", "https://api.orderly.org")
	v.SetDefault("ORDERLY_ACCOUNT_ID", "")
	v.SetDefault("ORDERLY_KEY", "")
	v.SetDefault("ORDERLY_SECRET", "")

	v.SetDefault("COMPLETION_URL", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("COMPLETION_KEY", "")
	v.SetDefault("COMPLETION_MODEL", "gpt-4o-mini")

	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")

	v.SetDefault("CACHE_TTL_MS", 2000)
	v.SetDefault("RATE_WINDOW_MS", 1000)
	v.SetDefault("POLL_INTERVAL_MS", 2000)
	v.SetDefault("ALERT_INTERVAL_MS", 30000)

	v.SetDefault("SYMBOLS", "PERP_BTC_USDC,PERP_ETH_USDC,PERP_SOL_USDC")

	return &Config{
		ExchangeBaseURL: v.GetString("EXCHANGE_BASE_URL"),
		AccountID:       v.GetString("ORDERLY_ACCOUNT_ID"),
		OrderlyKey:      v.GetString("ORDERLY_KEY"),
		OrderlySecret:   v.GetString("ORDERLY_SECRET"),

		CompletionURL:   v.GetString("COMPLETION_URL"),
		CompletionKey:   v.GetString("COMPLETION_KEY"),
		CompletionModel: v.GetString("COMPLETION_MODEL"),

		ListenAddr:  v.GetString("LISTEN_ADDR"),
		MetricsAddr: v.GetString("METRICS_ADDR"),

		CacheTTL:   time.Duration(v.GetInt("CACHE_TTL_MS")) * time.Millisecond,
		RateWindow: time.Duration(v.GetInt("RATE_WINDOW_MS")) * time.Millisecond,

		PollInterval:  time.Duration(v.GetInt("POLL_INTERVAL_MS")) * time.Millisecond,
		AlertInterval: time.Duration(v.GetInt("ALERT_INTERVAL_MS")) * time.Millisecond,

		Symbols: v.GetString("SYMBOLS"),
	}
}

// ParseSymbols splits the Symbols string into a clean slice.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
