package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dex-assistant/internal/alerts"
	"dex-assistant/internal/auth"
	"dex-assistant/internal/exchange"
	"dex-assistant/internal/market"
	"dex-assistant/internal/model"
)

func exchangeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "orderbook") {
			fmt.Fprint(w, `{"data":{"bids":[{"price":64990,"quantity":5}],"asks":[{"price":65010,"quantity":5}]}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"last_price":65000,"24h_open":64000,"24h_high":65500,"24h_low":63500,"24h_volume":12345}}`)
	}
}

// newTestHub wires a hub against a test exchange with fast timers.
func newTestHub(ts *httptest.Server, poll, alertEvery time.Duration) *Hub {
	client := exchange.New(exchange.Config{
		Signer:         auth.NewSigner(ts.URL, "", "", ""),
		HTTPClient:     ts.Client(),
		CacheTTL:       time.Millisecond,
		RateWindow:     time.Millisecond,
		AttemptTimeout: 500 * time.Millisecond,
		BackoffStep:    time.Millisecond,
		MaxAttempts:    1,
	})
	agg := market.New(client, poll)
	return NewHub(agg, alerts.New(agg, nil), nil, alertEvery)
}

// drain collects frames of the given type from a client's send queue.
func drain(c *Client, event string) int {
	n := 0
	for {
		select {
		case frame := <-c.send:
			var base struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(frame, &base) == nil && base.Type == event {
				n++
			}
		default:
			return n
		}
	}
}

func TestSubscribeStartsPollingAndFansOut(t *testing.T) {
	ts := httptest.NewServer(exchangeHandler())
	defer ts.Close()

	hub := newTestHub(ts, 20*time.Millisecond, time.Hour)

	a := newClient(hub, nil)
	b := newClient(hub, nil)
	hub.register(a)
	hub.register(b)

	hub.Subscribe(a, "PERP_BTC_USDC")
	hub.Subscribe(b, "PERP_BTC_USDC")

	time.Sleep(80 * time.Millisecond)

	if got := drain(a, "price-update"); got < 2 {
		t.Errorf("client a: expected at least 2 price updates, got %d", got)
	}
	if got := drain(b, "price-update"); got < 1 {
		t.Errorf("client b: expected price updates, got %d", got)
	}

	stats := hub.GetStats()
	if stats.ConnectedClients != 2 {
		t.Errorf("connected clients: got %d, want 2", stats.ConnectedClients)
	}
	if stats.Subscribers["PERP_BTC_USDC"] != 2 {
		t.Errorf("subscribers: got %d, want 2", stats.Subscribers["PERP_BTC_USDC"])
	}

	hub.RemoveClient(a)
	hub.RemoveClient(b)
}

func TestLastUnsubscribeStopsPolling(t *testing.T) {
	ts := httptest.NewServer(exchangeHandler())
	defer ts.Close()

	hub := newTestHub(ts, 20*time.Millisecond, time.Hour)

	a := newClient(hub, nil)
	b := newClient(hub, nil)
	hub.register(a)
	hub.register(b)

	hub.Subscribe(a, "PERP_ETH_USDC")
	hub.Subscribe(b, "PERP_ETH_USDC")

	// One leaving keeps the poller alive.
	hub.Unsubscribe(a, "PERP_ETH_USDC")
	time.Sleep(50 * time.Millisecond)
	drain(b, "price-update")
	time.Sleep(50 * time.Millisecond)
	if got := drain(b, "price-update"); got < 1 {
		t.Error("polling must continue while one subscriber remains")
	}

	// The last leaving stops both timers.
	hub.Unsubscribe(b, "PERP_ETH_USDC")
	time.Sleep(50 * time.Millisecond)
	drain(b, "price-update")
	time.Sleep(60 * time.Millisecond)
	if got := drain(b, "price-update"); got != 0 {
		t.Errorf("polling must stop after the last unsubscribe, got %d frames", got)
	}

	if n := len(hub.GetStats().ActiveSymbols); n != 0 {
		t.Errorf("expected no active symbols, got %d", n)
	}

	hub.RemoveClient(a)
	hub.RemoveClient(b)
}

func TestDisconnectDecrementsInterest(t *testing.T) {
	ts := httptest.NewServer(exchangeHandler())
	defer ts.Close()

	hub := newTestHub(ts, 20*time.Millisecond, time.Hour)

	a := newClient(hub, nil)
	hub.register(a)
	hub.Subscribe(a, "PERP_SOL_USDC")

	if n := len(hub.GetStats().ActiveSymbols); n != 1 {
		t.Fatalf("expected 1 active symbol, got %d", n)
	}

	// Disconnect without an explicit unsubscribe.
	hub.RemoveClient(a)

	stats := hub.GetStats()
	if len(stats.ActiveSymbols) != 0 {
		t.Errorf("disconnect must stop polling, still active: %v", stats.ActiveSymbols)
	}
	if stats.ConnectedClients != 0 {
		t.Errorf("connected clients: got %d, want 0", stats.ConnectedClients)
	}
}

func TestWalletDirectSends(t *testing.T) {
	ts := httptest.NewServer(exchangeHandler())
	defer ts.Close()

	hub := newTestHub(ts, time.Hour, time.Hour)

	a := newClient(hub, nil)
	b := newClient(hub, nil)
	hub.register(a)
	hub.register(b)

	hub.SubscribeAlerts(a, "0xabc")
	hub.SubscribeAlerts(b, "0xdef")

	hub.BroadcastRiskWarning("0xabc", "position near liquidation")
	hub.BroadcastAIAlert("0xabc", model.Alert{ID: "1", Message: "take profit zone", Type: model.AlertInfo})

	if got := drain(a, "risk-warning"); got != 1 {
		t.Errorf("wallet 0xabc: expected 1 risk warning, got %d", got)
	}
	if got := drain(a, "ai-alert"); got != 1 {
		t.Errorf("wallet 0xabc: expected 1 ai alert, got %d", got)
	}
	if got := drain(b, "risk-warning") + drain(b, "ai-alert"); got != 0 {
		t.Errorf("wallet 0xdef must not receive 0xabc frames, got %d", got)
	}

	hub.RemoveClient(a)
	hub.RemoveClient(b)
}

func TestLateSubscriberReceivesAlertHistory(t *testing.T) {
	ts := httptest.NewServer(exchangeHandler())
	defer ts.Close()

	hub := newTestHub(ts, time.Hour, time.Hour)

	a := newClient(hub, nil)
	hub.register(a)
	hub.Subscribe(a, "PERP_BTC_USDC")

	hub.BroadcastMarketAlert("PERP_BTC_USDC", model.Alert{ID: "m1", Message: "breakout above resistance", Type: model.AlertSuccess})
	drain(a, "market-alert")

	late := newClient(hub, nil)
	hub.register(late)
	hub.Subscribe(late, "PERP_BTC_USDC")

	if got := drain(late, "alerts"); got != 1 {
		t.Errorf("late subscriber: expected 1 alert history frame, got %d", got)
	}

	hub.RemoveClient(a)
	hub.RemoveClient(late)
}
