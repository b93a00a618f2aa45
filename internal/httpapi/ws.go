package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/R3E-Network/origin-gateway/internal/audit"
	"github.com/R3E-Network/origin-gateway/internal/logging"
	"github.com/R3E-Network/origin-gateway/internal/metrics"
	"github.com/R3E-Network/origin-gateway/internal/originpolicy"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	// wsClientBuffer bounds the per-client queue; slow clients drop
	// entries instead of stalling the publisher.
	wsClientBuffer = 32
)

// Hub fans live audit entries out to connected dashboard clients.
type Hub struct {
	mu      sync.Mutex
	clients map[chan audit.Entry]struct{}
	log     *logging.Logger
	closed  bool
}

func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		clients: make(map[chan audit.Entry]struct{}),
		log:     log,
	}
}

// Publish delivers an entry to every connected client without blocking.
func (h *Hub) Publish(entry audit.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- entry:
		default:
		}
	}
}

func (h *Hub) register() (chan audit.Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan audit.Entry, wsClientBuffer)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *Hub) unregister(ch chan audit.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

// serveWS upgrades the connection and streams audit entries as JSON
// messages. The upgrade enforces the same origin policy as every HTTP
// route: no allowlisted origin, no socket.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originpolicy.Evaluate(h.provider.Current(), r.Header.Get("Origin")).Allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response; a rejected origin
		// lands here as well.
		h.log.WithContext(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}

	ch, ok := h.hub.register()
	if !ok {
		conn.Close()
		return
	}

	metrics.WebSocketClientConnected()
	h.log.WithContext(r.Context()).Debug("websocket client connected")

	// Reader: discard inbound messages, detect disconnects.
	go func() {
		defer h.hub.unregister(ch)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		metrics.WebSocketClientDisconnected()
		conn.Close()
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case entry, open := <-ch:
			if !open {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(entry); err != nil {
				h.hub.unregister(ch)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.hub.unregister(ch)
				return
			}
		}
	}
}
