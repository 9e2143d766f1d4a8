// Package metrics registers Prometheus metrics for the assistant backend
// and serves them over HTTP.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the assistant service.
type Metrics struct {
	FetchAttempts   *prometheus.CounterVec // labels: op
	FetchFailures   *prometheus.CounterVec // labels: op
	CacheHits       prometheus.Counter
	RateLimitBlocks prometheus.Counter
	MockFallbacks   *prometheus.CounterVec // labels: op
	FetchDur        prometheus.Histogram

	CompletionCalls    prometheus.Counter
	CompletionFailures prometheus.Counter
	CompletionDur      prometheus.Histogram

	AlertsGenerated prometheus.Counter
	BroadcastsSent  *prometheus.CounterVec // labels: event

	WSClients     prometheus.Gauge
	ActiveSymbols prometheus.Gauge
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_fetch_attempts_total",
			Help: "Upstream exchange fetch attempts (by operation)",
		}, []string{"op"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_fetch_failures_total",
			Help: "Upstream exchange fetch failures after all retries (by operation)",
		}, []string{"op"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_cache_hits_total",
			Help: "Market data cache hits within TTL",
		}),
		RateLimitBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_rate_limit_blocks_total",
			Help: "Fetches short-circuited by the per-symbol rate limiter",
		}),
		MockFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_mock_fallbacks_total",
			Help: "Responses served from synthetic mock data (by operation)",
		}, []string{"op"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assistant_fetch_duration_seconds",
			Help:    "Upstream exchange fetch latency (successful attempts)",
			Buckets: prometheus.DefBuckets,
		}),

		CompletionCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_completion_calls_total",
			Help: "Text-completion API calls",
		}),
		CompletionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_completion_failures_total",
			Help: "Text-completion API failures (converted to apology replies)",
		}),
		CompletionDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assistant_completion_duration_seconds",
			Help:    "Text-completion API latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 30},
		}),

		AlertsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assistant_alerts_generated_total",
			Help: "Market alerts generated by threshold rules",
		}),
		BroadcastsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_broadcasts_sent_total",
			Help: "Realtime messages fanned out to clients (by event)",
		}, []string{"event"}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "assistant_ws_clients",
			Help: "Currently connected WebSocket clients",
		}),
		ActiveSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "assistant_active_symbols",
			Help: "Symbols with at least one subscriber (polling active)",
		}),
	}

	prometheus.MustRegister(
		m.FetchAttempts, m.FetchFailures, m.CacheHits, m.RateLimitBlocks,
		m.MockFallbacks, m.FetchDur,
		m.CompletionCalls, m.CompletionFailures, m.CompletionDur,
		m.AlertsGenerated, m.BroadcastsSent,
		m.WSClients, m.ActiveSymbols,
	)

	return m
}

// Serve starts the Prometheus /metrics endpoint on addr. Blocking.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("[metrics] serving Prometheus metrics on %s/metrics", addr)
	return http.ListenAndServe(addr, mux)
}
