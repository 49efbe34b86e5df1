package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/fleetd/internal/infrastructure/config"
	"github.com/nerrad567/fleetd/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeEvent      = "event"
	WSTypeSubscribe  = "subscribe"
	WSTypeSubscribed = "subscribed"
	WSTypeError      = "error"
)

// wsSendBufferSize is the per-client outbound message buffer. Clients
// that cannot drain it fast enough are disconnected.
const wsSendBufferSize = 256

// WSMessage is the envelope for all WebSocket traffic.
type WSMessage struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Actions []string        `json:"actions,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Hub manages connected WebSocket clients and broadcasts inventory
// events to them.
//
// All client lifecycle runs through the hub: clients attach with add()
// and detach with remove(), and both remain safe to call after the hub
// has shut down. Client send channels are never closed; the hub signals
// teardown by closing each client's done channel.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	clients    map[*WSClient]bool
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan WSMessage
	done       chan struct{} // closed when Run exits

	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:        cfg,
		logger:     logger,
		clients:    make(map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan WSMessage, wsSendBufferSize),
		done:       make(chan struct{}),
	}
}

// Run processes hub events until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("WebSocket client connected", "clients", count, "user", client.username)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.done)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("WebSocket client disconnected", "clients", count)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(msg.Topic) {
					continue
				}
				client.trySend(msg)
			}
			h.mu.RUnlock()
		}
	}
}

// add attaches a client to the hub. Returns false when the hub has
// already shut down; the caller must then close the connection itself.
func (h *Hub) add(client *WSClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// remove detaches a client. Safe to call at any point, including after
// the hub has shut down and for clients the hub already dropped.
func (h *Hub) remove(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a message for delivery to all subscribed clients.
// Non-blocking: the message is dropped if the hub queue is full.
func (h *Hub) Broadcast(topic string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn("marshalling broadcast payload failed", "error", err, "topic", topic)
		return
	}

	msg := WSMessage{Type: WSTypeEvent, Topic: topic, Data: payload}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("WebSocket broadcast queue full, message dropped", "topic", topic)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects every client during shutdown.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.done)
		delete(h.clients, client)
	}
}

// WSClient represents a single connected WebSocket client.
type WSClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan WSMessage
	done     chan struct{} // closed by the hub exactly once
	username string

	// actions holds the subscribed event actions (created, updated,
	// deleted). Empty means all.
	actionsMu sync.RWMutex
	actions   map[string]bool
}

// wants reports whether the client is subscribed to the given topic.
// Topics are "device.<action>"; clients subscribe by action.
func (c *WSClient) wants(topic string) bool {
	c.actionsMu.RLock()
	defer c.actionsMu.RUnlock()

	if len(c.actions) == 0 {
		return true
	}

	for action := range c.actions {
		if topic == "device."+action {
			return true
		}
	}
	return false
}

// trySend queues a message for the client without blocking. The send
// channel is never closed, so this is safe from any goroutine; messages
// for a departing or slow client are dropped.
func (c *WSClient) trySend(msg WSMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Slow client; drop the message rather than stall the hub.
	}
}

// upgrader configures the HTTP to WebSocket upgrade. Origin checking is
// handled by the CORS middleware upstream; the session middleware has
// already authenticated the request by the time the upgrade happens.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleEvents upgrades the connection and streams inventory events.
//
// GET /api/events (WebSocket)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan WSMessage, wsSendBufferSize),
		done:     make(chan struct{}),
		username: id.Username,
		actions:  make(map[string]bool),
	}

	if !s.hub.add(client) {
		// Server is shutting down.
		conn.Close()
		return
	}

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads subscribe messages from the client until the
// connection drops.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	pongTimeout := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case WSTypeSubscribe:
			c.actionsMu.Lock()
			c.actions = make(map[string]bool, len(msg.Actions))
			for _, action := range msg.Actions {
				c.actions[action] = true
			}
			c.actionsMu.Unlock()
			c.trySend(WSMessage{Type: WSTypeSubscribed, Actions: msg.Actions})
		default:
			c.trySend(WSMessage{Type: WSTypeError, Message: "unknown message type"})
		}
	}
}

// writePump writes queued messages and pings to the client.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	writeTimeout := time.Duration(cfg.PongTimeout) * time.Second

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// bridgeEvents forwards inventory events from the bus to WebSocket
// clients until the context is cancelled.
func (s *Server) bridgeEvents(ctx context.Context) {
	events, cancel := s.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.hub.Broadcast("device."+event.Action, event)
		}
	}
}
