package gateway

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 1024
	sendBuffer = 64
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Room membership, guarded by hub.mu.
	symbols map[string]bool
	wallet  string
}

// inboundMsg is the client→server frame shape. Exactly one of symbol or
// wallet is meaningful depending on type.
type inboundMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol,omitempty"`
	Wallet string `json:"wallet,omitempty"`
}

// newClient wraps an upgraded connection.
func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		hub:     hub,
		symbols: make(map[string]bool),
	}
}

// trySend queues a frame without blocking; a full buffer drops the frame.
func (c *Client) trySend(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var in inboundMsg
		if json.Unmarshal(msg, &in) != nil {
			continue
		}

		switch in.Type {
		case "subscribe-symbol":
			if in.Symbol != "" {
				c.hub.Subscribe(c, in.Symbol)
			}
		case "unsubscribe-symbol":
			if in.Symbol != "" {
				c.hub.Unsubscribe(c, in.Symbol)
			}
		case "subscribe-alerts":
			if in.Wallet != "" {
				c.hub.SubscribeAlerts(c, in.Wallet)
			}
		default:
			log.Printf("[gateway] ignoring unknown event type %q", in.Type)
		}
	}
}
