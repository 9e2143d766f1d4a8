// Package gateway is the realtime boundary: it upgrades WebSocket clients,
// tracks symbol and wallet subscription interest, and fans out price
// updates and alerts only to interested subscribers.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"dex-assistant/internal/alerts"
	"dex-assistant/internal/market"
	"dex-assistant/internal/metrics"
	"dex-assistant/internal/model"
	"dex-assistant/internal/ringbuf"
)

const (
	defaultAlertInterval = 30 * time.Second
	alertHistorySize     = 5
)

// Hub manages WebSocket clients and per-symbol polling lifecycles.
// A symbol is polled exactly while it has at least one subscriber.
type Hub struct {
	agg           *market.Aggregator
	gen           *alerts.Generator
	prom          *metrics.Metrics // optional
	alertInterval time.Duration

	mu      sync.RWMutex
	clients map[*Client]bool
	symbols map[string]*symbolRoom
	wallets map[string]map[*Client]bool
}

// symbolRoom tracks one symbol's subscribers and the timers feeding them.
type symbolRoom struct {
	members    map[*Client]bool
	history    *ringbuf.Ring
	stopPrice  func()
	stopAlerts context.CancelFunc
}

// NewHub creates a hub. A non-positive alertInterval selects the 30 second
// default.
func NewHub(agg *market.Aggregator, gen *alerts.Generator, prom *metrics.Metrics, alertInterval time.Duration) *Hub {
	if alertInterval <= 0 {
		alertInterval = defaultAlertInterval
	}
	return &Hub{
		agg:           agg,
		gen:           gen,
		prom:          prom,
		alertInterval: alertInterval,
		clients:       make(map[*Client]bool),
		symbols:       make(map[string]*symbolRoom),
		wallets:       make(map[string]map[*Client]bool),
	}
}

// register adds a connected client.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client connected (%d total)", count)
}

// RemoveClient drops a client from the hub and every room it joined,
// stopping symbol polling where it was the last subscriber.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)

	for symbol := range c.symbols {
		h.leaveSymbolLocked(c, symbol)
	}
	if c.wallet != "" {
		h.leaveWalletLocked(c, c.wallet)
	}
	h.mu.Unlock()

	close(c.send)
	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client disconnected (%d total)", count)
}

// Subscribe joins the client to symbol's interest group, starting the
// price and alert timers on the first subscriber.
func (h *Hub) Subscribe(c *Client, symbol string) {
	h.mu.Lock()
	room, ok := h.symbols[symbol]
	if !ok {
		room = &symbolRoom{
			members: make(map[*Client]bool),
			history: ringbuf.New(alertHistorySize),
		}
		h.symbols[symbol] = room
		h.startRoomLocked(symbol, room)
	}
	room.members[c] = true
	c.symbols[symbol] = true
	subscribers := len(room.members)
	recent := room.history.Last(0)
	active := len(h.symbols)
	h.mu.Unlock()

	if h.prom != nil {
		h.prom.ActiveSymbols.Set(float64(active))
	}
	log.Printf("[gateway] subscribe %s (%d subscribers)", symbol, subscribers)

	// Late joiners still see the recent alert history.
	if len(recent) > 0 {
		c.trySend(envelope("alerts", map[string]any{
			"symbol": symbol,
			"alerts": recent,
		}))
	}
}

// Unsubscribe removes the client from symbol's interest group, stopping
// the timers when it was the last subscriber.
func (h *Hub) Unsubscribe(c *Client, symbol string) {
	h.mu.Lock()
	delete(c.symbols, symbol)
	h.leaveSymbolLocked(c, symbol)
	active := len(h.symbols)
	h.mu.Unlock()

	if h.prom != nil {
		h.prom.ActiveSymbols.Set(float64(active))
	}
	log.Printf("[gateway] unsubscribe %s", symbol)
}

// SubscribeAlerts joins the client to its wallet's direct-send group.
func (h *Hub) SubscribeAlerts(c *Client, wallet string) {
	h.mu.Lock()
	if c.wallet != "" && c.wallet != wallet {
		h.leaveWalletLocked(c, c.wallet)
	}
	c.wallet = wallet
	if h.wallets[wallet] == nil {
		h.wallets[wallet] = make(map[*Client]bool)
	}
	h.wallets[wallet][c] = true
	h.mu.Unlock()

	log.Printf("[gateway] wallet %s subscribed to alerts", wallet)
}

// leaveSymbolLocked removes c from the symbol room. Caller holds h.mu.
func (h *Hub) leaveSymbolLocked(c *Client, symbol string) {
	room, ok := h.symbols[symbol]
	if !ok {
		return
	}
	delete(room.members, c)
	if len(room.members) > 0 {
		return
	}

	// Last subscriber left: cancel both timers.
	room.stopPrice()
	room.stopAlerts()
	delete(h.symbols, symbol)
	log.Printf("[gateway] %s: no subscribers left, polling stopped", symbol)
}

func (h *Hub) leaveWalletLocked(c *Client, wallet string) {
	if group, ok := h.wallets[wallet]; ok {
		delete(group, c)
		if len(group) == 0 {
			delete(h.wallets, wallet)
		}
	}
}

// startRoomLocked launches the price and alert timers for a fresh room.
// Caller holds h.mu.
func (h *Hub) startRoomLocked(symbol string, room *symbolRoom) {
	room.stopPrice = h.agg.StartPolling(symbol, func(snap model.MarketSnapshot) {
		h.broadcastToSymbol(symbol, "price-update", envelope("price-update", map[string]any{
			"symbol": symbol,
			"data":   snap,
		}))
	})

	ctx, cancel := context.WithCancel(context.Background())
	room.stopAlerts = cancel
	go h.alertLoop(ctx, symbol, room)
}

// alertLoop evaluates alert rules for symbol on the alert interval and
// fans out any hits, recording them in the room history.
func (h *Hub) alertLoop(ctx context.Context, symbol string, room *symbolRoom) {
	ticker := time.NewTicker(h.alertInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			generated := h.gen.Generate(ctx, symbol)
			if len(generated) == 0 {
				continue
			}
			for _, a := range generated {
				room.history.Push(a)
			}
			h.broadcastToSymbol(symbol, "alerts", envelope("alerts", map[string]any{
				"symbol": symbol,
				"alerts": generated,
			}))
		}
	}
}

// broadcastToSymbol fans a prebuilt frame out to every subscriber of
// symbol. Slow clients drop the frame rather than block the hub.
func (h *Hub) broadcastToSymbol(symbol, event string, frame []byte) {
	h.mu.RLock()
	room, ok := h.symbols[symbol]
	if !ok {
		h.mu.RUnlock()
		return
	}
	sent := 0
	for c := range room.members {
		if c.trySend(frame) {
			sent++
		}
	}
	h.mu.RUnlock()

	if h.prom != nil && sent > 0 {
		h.prom.BroadcastsSent.WithLabelValues(event).Add(float64(sent))
	}
}

// broadcastToWallet sends a frame to every connection of one wallet.
func (h *Hub) broadcastToWallet(wallet, event string, frame []byte) {
	h.mu.RLock()
	sent := 0
	for c := range h.wallets[wallet] {
		if c.trySend(frame) {
			sent++
		}
	}
	h.mu.RUnlock()

	if h.prom != nil && sent > 0 {
		h.prom.BroadcastsSent.WithLabelValues(event).Add(float64(sent))
	}
}

// BroadcastRiskWarning sends a risk warning directly to a wallet's
// connections, independent of symbol polling.
func (h *Hub) BroadcastRiskWarning(wallet, warning string) {
	h.broadcastToWallet(wallet, "risk-warning", envelope("risk-warning", map[string]any{
		"wallet":  wallet,
		"warning": warning,
	}))
}

// BroadcastAIAlert sends an assistant-generated alert directly to a
// wallet's connections.
func (h *Hub) BroadcastAIAlert(wallet string, alert model.Alert) {
	h.broadcastToWallet(wallet, "ai-alert", envelope("ai-alert", map[string]any{
		"wallet": wallet,
		"alert":  alert,
	}))
}

// BroadcastMarketAlert sends one alert to a symbol's subscribers outside
// the periodic alert loop.
func (h *Hub) BroadcastMarketAlert(symbol string, alert model.Alert) {
	h.mu.RLock()
	room, ok := h.symbols[symbol]
	h.mu.RUnlock()
	if ok {
		room.history.Push(alert)
	}
	h.broadcastToSymbol(symbol, "market-alert", envelope("market-alert", map[string]any{
		"symbol": symbol,
		"alert":  alert,
	}))
}

// Stats is the diagnostics payload for /api/realtime/stats.
type Stats struct {
	ConnectedClients int            `json:"connectedClients"`
	ActiveSymbols    []string       `json:"activeSymbols"`
	Subscribers      map[string]int `json:"subscribers"`
	TS               time.Time      `json:"timestamp"`
}

// GetStats reports connected clients, actively polled symbols and
// per-symbol subscriber counts.
func (h *Hub) GetStats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		ConnectedClients: len(h.clients),
		ActiveSymbols:    make([]string, 0, len(h.symbols)),
		Subscribers:      make(map[string]int, len(h.symbols)),
		TS:               time.Now().UTC(),
	}
	for symbol, room := range h.symbols {
		s.ActiveSymbols = append(s.ActiveSymbols, symbol)
		s.Subscribers[symbol] = len(room.members)
	}
	return s
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// envelope builds a typed JSON frame with a timestamp.
func envelope(event string, fields map[string]any) []byte {
	payload := map[string]any{
		"type":      event,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		payload[k] = v
	}
	frame, _ := json.Marshal(payload)
	return frame
}
