package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/tracking"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 32
)

// WebSocketHandler pushes tracking events to browser clients so the UI does
// not have to poll the status endpoint itself.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	logger   arbor.ILogger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan interfaces.Event

	// sessionID filters events when set; empty means all sessions.
	sessionID string
}

// NewWebSocketHandler creates the handler and subscribes it to tracking events.
func NewWebSocketHandler(events interfaces.EventService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}

	events.Subscribe(interfaces.EventProgress, h.onEvent)
	events.Subscribe(interfaces.EventOutcome, h.onEvent)
	return h
}

// Handle handles GET /ws. An optional session_id query parameter limits the
// stream to a single session.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:      conn,
		send:      make(chan interfaces.Event, wsSendBuffer),
		sessionID: r.URL.Query().Get("session_id"),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Info().Str("session_id", client.sessionID).Msg("WebSocket client connected")

	go h.writeLoop(client)
	h.readLoop(client)
}

// onEvent fans an event out to connected clients. Slow clients drop events
// rather than block the tracking loop.
func (h *WebSocketHandler) onEvent(ctx context.Context, event interfaces.Event) {
	sessionID := eventSessionID(event)

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.sessionID != "" && client.sessionID != sessionID {
			continue
		}
		select {
		case client.send <- event:
		default:
		}
	}
}

func (h *WebSocketHandler) writeLoop(client *wsClient) {
	for event := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.conn.WriteJSON(event); err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket write failed")
			client.conn.Close()
			return
		}
	}
}

// readLoop drains and discards client frames until the connection closes.
func (h *WebSocketHandler) readLoop(client *wsClient) {
	defer h.disconnect(client)

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) disconnect(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()

	client.conn.Close()
	h.logger.Info().Msg("WebSocket client disconnected")
}

// eventSessionID extracts the session id from a tracking event payload.
func eventSessionID(event interfaces.Event) string {
	switch p := event.Payload.(type) {
	case tracking.ProgressEvent:
		return p.SessionID
	case tracking.OutcomeEvent:
		return p.SessionID
	case map[string]interface{}:
		if id, ok := p["session_id"].(string); ok {
			return id
		}
	}
	return ""
}
