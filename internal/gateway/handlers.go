package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"dex-assistant/internal/assistant"
	"dex-assistant/internal/market"
	"dex-assistant/internal/positions"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// chatRequest is the POST /api/ai/chat body. All fields are required.
type chatRequest struct {
	Message string `json:"message"`
	Wallet  string `json:"wallet"`
	Symbol  string `json:"symbol"`
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, chat *assistant.Service, agg *market.Aggregator, pos *positions.Service, processStart time.Time) {
	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		hub.HandleConn(conn)
	})

	// POST /api/ai/chat
	mux.HandleFunc("/api/ai/chat", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != "POST" {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
			return
		}
		if req.Message == "" || req.Wallet == "" || req.Symbol == "" {
			http.Error(w, `{"error":"message, wallet and symbol are required"}`, http.StatusBadRequest)
			return
		}

		// Chat never errors; failures come back as an apology payload.
		result := chat.Chat(r.Context(), req.Message, req.Wallet, req.Symbol)
		json.NewEncoder(w).Encode(result)
	})

	// GET /api/market/{symbol}
	mux.HandleFunc("/api/market/", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		symbol := strings.TrimPrefix(r.URL.Path, "/api/market/")
		if symbol == "" || strings.Contains(symbol, "/") {
			http.Error(w, `{"error":"symbol required"}`, http.StatusBadRequest)
			return
		}

		snap := agg.Snapshot(r.Context(), symbol)
		if !snap.IsRealData {
			// Synthetic data is degraded success, not an error.
			w.WriteHeader(http.StatusPartialContent)
		}
		json.NewEncoder(w).Encode(snap)
	})

	// GET /api/positions/{wallet}
	mux.HandleFunc("/api/positions/", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		wallet := strings.TrimPrefix(r.URL.Path, "/api/positions/")
		if wallet == "" || strings.Contains(wallet, "/") {
			http.Error(w, `{"error":"wallet required"}`, http.StatusBadRequest)
			return
		}

		json.NewEncoder(w).Encode(pos.Portfolio(r.Context(), wallet))
	})

	// GET /api/realtime/stats
	mux.HandleFunc("/api/realtime/stats", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(hub.GetStats())
	})

	// Health endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     "ok",
			"ws_clients": hub.ClientCount(),
			"cache":      agg.Client().Stats(),
			"uptime_sec": int64(time.Since(processStart).Seconds()),
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

// HandleConn registers an upgraded connection and starts its pumps.
func (h *Hub) HandleConn(conn *websocket.Conn) {
	client := newClient(h, conn)
	h.register(client)

	go client.writePump()
	go client.readPump()
}
