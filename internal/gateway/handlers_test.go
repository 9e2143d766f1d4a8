package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"dex-assistant/internal/assistant"
	"dex-assistant/internal/positions"
)

type fixedCompleter struct {
	reply string
}

func (f fixedCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return f.reply, nil
}

// newTestServer wires the full HTTP surface against a fake exchange.
func newTestServer(t *testing.T, handler http.HandlerFunc, poll time.Duration) (*httptest.Server, *Hub) {
	t.Helper()
	exchangeTS := httptest.NewServer(handler)
	t.Cleanup(exchangeTS.Close)

	hub := newTestHub(exchangeTS, poll, time.Hour)
	chat := assistant.NewService(hub.agg, fixedCompleter{reply: "looks neutral"}, nil)
	pos := positions.New(hub.agg.Client())

	mux := http.NewServeMux()
	RegisterRoutes(mux, hub, chat, hub.agg, pos, time.Now())

	api := httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api, hub
}

func TestChatEndpointValidatesFields(t *testing.T) {
	api, _ := newTestServer(t, exchangeHandler(), time.Hour)

	for _, body := range []string{
		`{}`,
		`{"message":"hi"}`,
		`{"message":"hi","wallet":"0xabc"}`,
		`{"wallet":"0xabc","symbol":"PERP_BTC_USDC"}`,
	} {
		resp, err := http.Post(api.URL+"/api/ai/chat", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: got status %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestChatEndpointNeverFailsAgainstDeadUpstream(t *testing.T) {
	api, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}, time.Hour)

	resp, err := http.Post(api.URL+"/api/ai/chat", "application/json",
		strings.NewReader(`{"message":"analyze market","wallet":"0xabc","symbol":"PERP_HYPE_USDC"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var result assistant.ChatResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Price <= 0 {
		t.Errorf("mock-backed chat price must be positive, got %g", result.Price)
	}
	if result.Indicators.RSI < 0 || result.Indicators.RSI > 100 {
		t.Errorf("RSI out of bounds: %g", result.Indicators.RSI)
	}
}

func TestMarketEndpointRealAndDegraded(t *testing.T) {
	api, _ := newTestServer(t, exchangeHandler(), time.Hour)

	resp, err := http.Get(api.URL + "/api/market/PERP_BTC_USDC")
	if err != nil {
		t.Fatal(err)
	}
	var snap struct {
		Symbol     string  `json:"symbol"`
		Price      float64 `json:"price"`
		IsRealData bool    `json:"isRealData"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if !snap.IsRealData || snap.Price != 65000 {
		t.Errorf("snapshot: %+v", snap)
	}

	degraded, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}, time.Hour)

	resp, err = http.Get(degraded.URL + "/api/market/PERP_BTC_USDC")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		t.Errorf("degraded status: got %d, want 206", resp.StatusCode)
	}
}

func TestPositionsEndpoint(t *testing.T) {
	api, _ := newTestServer(t, exchangeHandler(), time.Hour)

	resp, err := http.Get(api.URL + "/api/positions/0xabc")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	var p struct {
		Wallet    string           `json:"wallet"`
		Positions []map[string]any `json:"positions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Wallet != "0xabc" || len(p.Positions) == 0 {
		t.Errorf("portfolio: %+v", p)
	}
}

func TestWebSocketSubscribeFlow(t *testing.T) {
	api, hub := newTestServer(t, exchangeHandler(), 20*time.Millisecond)

	wsURL := "ws" + strings.TrimPrefix(api.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	err = conn.WriteJSON(map[string]string{"type": "subscribe-symbol", "symbol": "PERP_BTC_USDC"})
	if err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type   string `json:"type"`
		Symbol string `json:"symbol"`
		Data   struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	for frame.Type != "price-update" {
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatal(err)
		}
	}
	if frame.Symbol != "PERP_BTC_USDC" || frame.Data.Price != 65000 {
		t.Errorf("price-update frame: %+v", frame)
	}

	if hub.GetStats().Subscribers["PERP_BTC_USDC"] != 1 {
		t.Error("expected 1 subscriber tracked")
	}

	conn.Close()
	time.Sleep(100 * time.Millisecond)
	if n := len(hub.GetStats().ActiveSymbols); n != 0 {
		t.Errorf("close must stop polling, still active: %d", n)
	}
}

func TestRealtimeStatsEndpoint(t *testing.T) {
	api, _ := newTestServer(t, exchangeHandler(), time.Hour)

	resp, err := http.Get(api.URL + "/api/realtime/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.ConnectedClients != 0 || len(stats.ActiveSymbols) != 0 {
		t.Errorf("fresh hub stats: %+v", stats)
	}
}

func TestHealthEndpoint(t *testing.T) {
	api, _ := newTestServer(t, exchangeHandler(), time.Hour)

	resp, err := http.Get(api.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var h map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if h["status"] != "ok" {
		t.Errorf("health: %+v", h)
	}
}
