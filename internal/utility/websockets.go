package utility

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Upgrader is shared by every websocket endpoint.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow CORS for development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatFrame is one message sent to a chat socket.
type ChatFrame struct {
	Role  string `json:"role"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Hub tracks the live chat socket of each case: map[caseID] -> connection.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*websocket.Conn)}
}

// Register stores conn for caseID, closing any socket it replaces.
func (h *Hub) Register(caseID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[caseID]; ok && old != conn {
		old.Close()
	}
	h.clients[caseID] = conn
	log.Info().Str("case_id", caseID).Msg("WebSocket Client Connected")
}

// Unregister forgets conn if it is still the registered socket for caseID.
func (h *Hub) Unregister(caseID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[caseID]; ok && cur == conn {
		delete(h.clients, caseID)
		log.Info().Str("case_id", caseID).Msg("WebSocket Client Disconnected")
	}
}

// Close tells the client its conversation is gone and drops the socket.
// It is safe to call for cases with no socket.
func (h *Hub) Close(caseID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.clients[caseID]
	if !ok {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "conversation ended")
	// WriteControl may run concurrently with the handler's own writes.
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		log.Warn().Err(err).Str("case_id", caseID).Msg("Failed to send WS close message")
	}
	conn.Close()
	delete(h.clients, caseID)
}

// Len counts live sockets.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
