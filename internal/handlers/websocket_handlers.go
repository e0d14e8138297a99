package handlers

import (
	"net/http"

	"gps-chat/internal/auth"
	ws "gps-chat/internal/websocket"
	"gps-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

// WebSocketHandlers is the connection gate: it resolves the carried token to
// a verified identity before any socket is admitted.
type WebSocketHandlers struct {
	authService *auth.Service
	hub         *ws.Hub
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, hub *ws.Hub) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		hub:         hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	identity, err := h.authService.VerifyToken(tokenStr)
	if err != nil {
		logger.Warn("WS handshake refused: %v", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, identity)
	h.hub.Connect(identity, client)

	go client.WritePump()
	go client.ReadPump()
}
