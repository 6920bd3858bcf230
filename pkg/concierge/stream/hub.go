// Package stream provides real-time WebSocket streaming of wager session
// events to connected clients.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventType represents the type of streaming event.
type EventType string

const (
	EventTypeQuestion  EventType = "question"
	EventTypeIntent    EventType = "intent"
	EventTypeRisk      EventType = "risk"
	EventTypeContest   EventType = "contest"
	EventTypeCommit    EventType = "commit"
	EventTypeStatus    EventType = "status"
	EventTypeError     EventType = "error"
	EventTypeHeartbeat EventType = "heartbeat"
)

var allEventTypes = []EventType{
	EventTypeQuestion,
	EventTypeIntent,
	EventTypeRisk,
	EventTypeContest,
	EventTypeCommit,
	EventTypeStatus,
	EventTypeError,
	EventTypeHeartbeat,
}

// Event is a streaming event sent to clients.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Hub manages WebSocket connections and broadcasts session events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	log      *zap.Logger
}

// Client represents a WebSocket client connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Subscription filters
	subscriptions map[EventType]bool
	subMu         sync.RWMutex
}

// NewHub creates a new streaming hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
		log: log,
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("ws client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			remaining := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("ws client disconnected", zap.Int("remaining", remaining))

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-heartbeat.C:
			h.Broadcast(Event{
				Type:      EventTypeHeartbeat,
				Timestamp: time.Now(),
				Data:      map[string]any{"clients": h.ClientCount()},
			})
		}
	}
}

func (h *Hub) broadcastEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("ws marshal failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		// Check if client is subscribed to this event type
		if !client.isSubscribed(event.Type) {
			continue
		}

		select {
		case client.send <- data:
		default:
			// Client buffer full, close connection
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("ws broadcast channel full, dropping event")
	}
}

// BroadcastQuestion broadcasts the next guiding question for a session.
func (h *Hub) BroadcastQuestion(sessionID string, question any) {
	h.Broadcast(Event{
		Type:      EventTypeQuestion,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      question,
	})
}

// BroadcastIntent broadcasts an extracted or updated betting intent.
func (h *Hub) BroadcastIntent(sessionID string, intent any) {
	h.Broadcast(Event{
		Type:      EventTypeIntent,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      intent,
	})
}

// BroadcastRisk broadcasts a risk assessment.
func (h *Hub) BroadcastRisk(sessionID string, assessment any) {
	h.Broadcast(Event{
		Type:      EventTypeRisk,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      assessment,
	})
}

// BroadcastContest broadcasts the resolved contest for a session.
func (h *Hub) BroadcastContest(sessionID string, contest any) {
	h.Broadcast(Event{
		Type:      EventTypeContest,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      contest,
	})
}

// BroadcastCommit broadcasts commit progress for a session.
func (h *Hub) BroadcastCommit(sessionID string, data any) {
	h.Broadcast(Event{
		Type:      EventTypeCommit,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// BroadcastStatus broadcasts a status update.
func (h *Hub) BroadcastStatus(status any) {
	h.Broadcast(Event{
		Type:      EventTypeStatus,
		Timestamp: time.Now(),
		Data:      status,
	})
}

// BroadcastError broadcasts an error event.
func (h *Hub) BroadcastError(sessionID string, err error, context string) {
	h.Broadcast(Event{
		Type:      EventTypeError,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data: map[string]any{
			"error":   err.Error(),
			"context": context,
		},
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS handles WebSocket upgrade requests.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[EventType]bool),
	}

	// Subscribe to all events by default
	for _, et := range allEventTypes {
		client.subscriptions[et] = true
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// isSubscribed checks if client is subscribed to an event type.
func (c *Client) isSubscribed(eventType EventType) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[eventType]
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("ws read error", zap.Error(err))
			}
			break
		}

		// Handle subscription messages
		c.handleMessage(message)
	}
}

// handleMessage processes incoming client messages.
func (c *Client) handleMessage(message []byte) {
	var msg struct {
		Type   string   `json:"type"`
		Events []string `json:"events"`
	}

	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subMu.Lock()
		for _, event := range msg.Events {
			c.subscriptions[EventType(event)] = true
		}
		c.subMu.Unlock()

	case "unsubscribe":
		c.subMu.Lock()
		for _, event := range msg.Events {
			delete(c.subscriptions, EventType(event))
		}
		c.subMu.Unlock()
	}
}

// writePump writes messages to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Write queued messages
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
