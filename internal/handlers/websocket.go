// -----------------------------------------------------------------------
// Last Modified: Thursday, 8th October 2026 4:12:09 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const writeTimeout = 5 * time.Second

// WebSocketHandler streams ensemble lifecycle events to connected clients
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]*sync.Mutex // per-connection write lock
	mu               sync.RWMutex
	eventService     interfaces.EventService
	eventHandler     interfaces.EventHandler
	allowedEvents    map[string]bool // Whitelist of events to broadcast (empty = allow all)
	serverInstanceID string          // Unique ID generated on startup - clients use to detect server restart
	startedAt        time.Time
}

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	ServerInstanceID string `json:"server_instance_id"`
	Version          string `json:"version"`
	Clients          int    `json:"clients"`
	Uptime           string `json:"uptime"`
	Timestamp        string `json:"timestamp"`
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		allowedEvents:    make(map[string]bool),
		serverInstanceID: uuid.New().String(),
		startedAt:        time.Now(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized with server instance ID")

	if config != nil && len(config.AllowedEvents) > 0 {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
		logger.Debug().
			Int("allowed_events", len(h.allowedEvents)).
			Msg("Initialized event whitelist for WebSocketHandler")
	}

	if eventService != nil {
		h.subscribeToEvents()
	}

	return h
}

func (h *WebSocketHandler) subscribeToEvents() {
	h.eventHandler = func(ctx context.Context, event interfaces.Event) error {
		h.BroadcastEvent(event)
		return nil
	}
	for _, eventType := range interfaces.AllEventTypes() {
		if !h.isAllowed(string(eventType)) {
			continue
		}
		if err := h.eventService.Subscribe(eventType, h.eventHandler); err != nil {
			h.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe WebSocket handler")
		}
	}
}

func (h *WebSocketHandler) isAllowed(eventType string) bool {
	return len(h.allowedEvents) == 0 || h.allowedEvents[eventType]
}

// HandleWebSocket upgrades the connection and keeps it registered until the client leaves
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	// Send initial status
	h.sendStatus(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", clientCount)
	}()

	// Read messages from client (keep connection alive)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// BroadcastEvent sends an event to all connected clients, honouring the whitelist
func (h *WebSocketHandler) BroadcastEvent(event interfaces.Event) {
	if !h.isAllowed(string(event.Type)) {
		return
	}
	h.broadcast(WSMessage{Type: string(event.Type), Payload: event.Payload})
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the event service and disconnects every client
func (h *WebSocketHandler) Close() {
	if h.eventService != nil && h.eventHandler != nil {
		for _, eventType := range interfaces.AllEventTypes() {
			_ = h.eventService.Unsubscribe(eventType, h.eventHandler)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, mutex := range h.clients {
		mutex.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeTimeout))
		mutex.Unlock()
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *WebSocketHandler) sendStatus(conn *websocket.Conn) {
	h.mu.RLock()
	mutex := h.clients[conn]
	clientCount := len(h.clients)
	h.mu.RUnlock()
	if mutex == nil {
		return
	}

	msg := WSMessage{
		Type: "status",
		Payload: StatusUpdate{
			ServerInstanceID: h.serverInstanceID,
			Version:          common.GetVersion(),
			Clients:          clientCount,
			Uptime:           time.Since(h.startedAt).Round(time.Second).String(),
			Timestamp:        time.Now().Format(time.RFC3339),
		},
	}

	mutex.Lock()
	defer mutex.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send status to client")
	}
}

func (h *WebSocketHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn, mutex := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, mutex)
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
		}
	}
}
