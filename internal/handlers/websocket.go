package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 4096
)

// defaultAllowedEvents is the event whitelist when config names none.
var defaultAllowedEvents = []string{
	string(interfaces.EventWorkflowProgress),
	string(interfaces.EventReportCompleted),
	string(interfaces.EventIngestCompleted),
	string(interfaces.EventHealthChanged),
}

// LogEntry is one log line pushed to WebSocket clients.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// wsMessage is the wire envelope for every WebSocket push.
type wsMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
}

// WebSocketHandler fans events and logs out to connected clients. Event
// types pass through a whitelist and optional per-type rate limiters.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	events   interfaces.EventService
	logger   arbor.ILogger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool

	allowed  map[string]bool
	limiters map[string]*rate.Limiter
}

// NewWebSocketHandler creates the hub and wires its event subscriptions.
func NewWebSocketHandler(events interfaces.EventService, cfg common.WebSocketConfig, logger arbor.ILogger) (*WebSocketHandler, error) {
	allowed := make(map[string]bool)
	names := cfg.AllowedEvents
	if len(names) == 0 {
		names = defaultAllowedEvents
	}
	for _, name := range names {
		allowed[name] = true
	}

	limiters := make(map[string]*rate.Limiter)
	for eventType, interval := range cfg.ThrottleIntervals {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, common.Wrapf(common.KindInvalidInput, "websocket.new", err,
				"invalid throttle interval for %s", eventType)
		}
		limiters[eventType] = rate.NewLimiter(rate.Every(d), 1)
	}

	h := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		events:   events,
		logger:   logger,
		clients:  make(map[*websocket.Conn]bool),
		allowed:  allowed,
		limiters: limiters,
	}

	if events != nil {
		for _, name := range names {
			if err := events.Subscribe(interfaces.EventType(name), h.handleEvent); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}

// handleEvent forwards a service event to connected clients, subject to
// the whitelist and the per-type throttle.
func (h *WebSocketHandler) handleEvent(ctx context.Context, event interfaces.Event) error {
	name := string(event.Type)
	if !h.allowed[name] {
		return nil
	}
	if limiter, ok := h.limiters[name]; ok && !limiter.Allow() {
		return nil
	}

	h.broadcast(wsMessage{
		Type:      name,
		Payload:   event.Payload,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return nil
}

// HandleWebSocket serves GET /ws: upgrades the connection and holds it
// open until the client goes away.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().
		Str("remote", r.RemoteAddr).
		Int("clients", count).
		Msg("WebSocket client connected")

	conn.SetReadLimit(wsReadLimit)
	common.SafeGo(h.logger, "ws-read-"+r.RemoteAddr, func() {
		defer h.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// BroadcastLog pushes one log line to every connected client.
func (h *WebSocketHandler) BroadcastLog(entry LogEntry) {
	h.broadcast(wsMessage{
		Type:      "log",
		Payload:   entry,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// broadcast writes one message to all clients, dropping any that fail.
func (h *WebSocketHandler) broadcast(msg wsMessage) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			h.dropClient(conn)
		}
	}
}

// dropClient unregisters and closes one connection.
func (h *WebSocketHandler) dropClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	h.logger.Debug().Int("clients", count).Msg("WebSocket client disconnected")
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *WebSocketHandler) Close() error {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	return nil
}
