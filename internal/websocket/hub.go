package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"gps-chat/internal/chat"
	"gps-chat/internal/models"
	"gps-chat/internal/presence"
	"gps-chat/pkg/logger"
)

// poorAccuracyMeters is the threshold above which a GPS fix is logged as poor.
const poorAccuracyMeters = 10

// Hub dispatches inbound events from every connection onto the shared
// presence registry and the chat services, and pushes presence snapshots out.
type Hub struct {
	registry *presence.Registry
	rooms    *chat.RoomResolver
	messages *chat.MessageService

	// debounce coalesces presence broadcasts; zero pushes on every change.
	debounce      time.Duration
	mu            sync.Mutex
	lastBroadcast time.Time
	pending       bool
}

func NewHub(registry *presence.Registry, rooms *chat.RoomResolver, messages *chat.MessageService, debounce time.Duration) *Hub {
	return &Hub{
		registry: registry,
		rooms:    rooms,
		messages: messages,
		debounce: debounce,
	}
}

// Connect registers an admitted connection and announces the new presence
// set. A reconnect for the same user supersedes the previous connection.
func (h *Hub) Connect(identity models.Identity, conn presence.Conn) {
	h.registry.Register(identity, conn)
	logger.Info("Socket connected: %s (ID: %d)", identity.Username, identity.UserID)
	h.BroadcastPresence()
}

// Disconnect removes the connection if it is still current. A superseded
// socket disconnecting late changes nothing and triggers no broadcast.
func (h *Hub) Disconnect(identity models.Identity, conn presence.Conn) {
	if h.registry.Unregister(identity.UserID, conn) {
		logger.Info("Socket disconnected: %s", identity.Username)
		h.BroadcastPresence()
	}
}

// HandleEvent processes one inbound frame from a connection. Events are
// handled in the order the connection delivered them.
func (h *Hub) HandleEvent(ctx context.Context, identity models.Identity, conn presence.Conn, raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Warn("Malformed frame from %s: %v", identity.Username, err)
		return
	}

	switch env.Event {
	case models.EventUpdateLocation:
		h.handleLocationUpdate(identity, env.Data)
	case models.EventSendMessage:
		h.handleSendMessage(ctx, identity, conn, env.Data)
	case models.EventInitiateChat:
		h.handleInitiateChat(ctx, identity, conn, env.Data)
	case models.EventClientPing:
		h.sendEvent(conn, models.EventClientPong, json.RawMessage(env.Data))
	case models.EventBackgroundMode:
		var background bool
		if err := json.Unmarshal(env.Data, &background); err == nil {
			h.registry.SetBackground(identity.UserID, background)
			logger.Info("User %s switched background mode: %v", identity.Username, background)
		}
	case models.EventGoBackground:
		h.registry.Touch(identity.UserID)
		logger.Info("User %s app going to background", identity.Username)
	case models.EventGoForeground:
		h.registry.Touch(identity.UserID)
		logger.Info("User %s app returning to foreground", identity.Username)
	default:
		logger.Warn("Unknown event %q from %s", env.Event, identity.Username)
	}
}

// handleLocationUpdate treats fixes as best-effort telemetry: anything
// malformed or non-finite is dropped without an error back to the sender, and
// an update arriving after disconnect is dropped the same way.
func (h *Hub) handleLocationUpdate(identity models.Identity, data json.RawMessage) {
	var update models.LocationUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return
	}
	if update.Lat == nil || update.Lon == nil || !isFinite(*update.Lat) || !isFinite(*update.Lon) {
		return
	}

	fix := presence.Fix{Lat: *update.Lat, Lon: *update.Lon}
	if update.Accuracy != nil && isFinite(*update.Accuracy) {
		fix.Accuracy = update.Accuracy
		if *update.Accuracy > poorAccuracyMeters {
			logger.Warn("Poor GPS accuracy for %s: %.2fm", identity.Username, *update.Accuracy)
		}
	}
	if update.Speed != nil && isFinite(*update.Speed) {
		fix.Speed = update.Speed
	}
	if update.Heading != nil && isFinite(*update.Heading) {
		fix.Heading = update.Heading
	}
	if update.Timestamp != nil {
		ts := time.UnixMilli(*update.Timestamp)
		fix.Timestamp = &ts
	}

	if _, err := h.registry.UpdateLocation(identity.UserID, fix); err != nil {
		// Update raced a disconnect; nothing to do.
		return
	}
	h.BroadcastPresence()
}

func (h *Hub) handleSendMessage(ctx context.Context, identity models.Identity, conn presence.Conn, data json.RawMessage) {
	var req models.SendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == 0 {
		h.sendError(conn, "Invalid message data.")
		return
	}

	_, err := h.messages.Send(ctx, identity, req.RoomID, req.Content)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrInvalidContent):
		h.sendError(conn, "Message must be a non-empty string of at most 1000 characters.")
	case errors.Is(err, chat.ErrNotAParticipant):
		h.sendError(conn, "You are not a participant of this chat room.")
	default:
		logger.Error("Error sending message from %s: %v", identity.Username, err)
		h.sendError(conn, "Server error while sending the message.")
	}
}

func (h *Hub) handleInitiateChat(ctx context.Context, identity models.Identity, conn presence.Conn, data json.RawMessage) {
	var req models.InitiateChatRequest
	if err := json.Unmarshal(data, &req); err != nil || req.TargetUserID == 0 {
		h.sendError(conn, "Invalid chat request.")
		return
	}

	roomID, targetUsername, err := h.rooms.ResolvePrivateRoom(ctx, identity.UserID, req.TargetUserID)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrSelfChat):
		logger.Warn("User %d tried to chat with themselves", identity.UserID)
		return
	case errors.Is(err, chat.ErrUnknownUser):
		h.sendError(conn, "User not found.")
		return
	default:
		logger.Error("Error resolving private room for %d -> %d: %v", identity.UserID, req.TargetUserID, err)
		h.sendError(conn, "Error starting the chat. Please try again.")
		return
	}

	// Both sides see the room named after the other participant.
	h.sendEvent(conn, models.EventChatStarted, models.ChatStarted{RoomID: roomID, RoomName: targetUsername})
	if targetConn, ok := h.registry.ConnOf(req.TargetUserID); ok {
		h.sendEvent(targetConn, models.EventChatStarted, models.ChatStarted{RoomID: roomID, RoomName: identity.Username})
	} else {
		logger.Info("Chat target %d is not online", req.TargetUserID)
	}
}

// BroadcastPresence pushes the full current snapshot to every connection.
// With a debounce window configured, bursts collapse onto a trailing push so
// the last state always goes out.
func (h *Hub) BroadcastPresence() {
	if h.debounce <= 0 {
		h.pushPresence()
		return
	}

	h.mu.Lock()
	if h.pending {
		h.mu.Unlock()
		return
	}
	elapsed := time.Since(h.lastBroadcast)
	if elapsed >= h.debounce {
		h.lastBroadcast = time.Now()
		h.mu.Unlock()
		h.pushPresence()
		return
	}
	h.pending = true
	h.mu.Unlock()

	time.AfterFunc(h.debounce-elapsed, func() {
		h.mu.Lock()
		h.pending = false
		h.lastBroadcast = time.Now()
		h.mu.Unlock()
		h.pushPresence()
	})
}

func (h *Hub) pushPresence() {
	data, err := models.NewEnvelope(models.EventOnlineUsers, h.registry.Snapshot())
	if err != nil {
		logger.Error("Error encoding presence update: %v", err)
		return
	}
	h.registry.Broadcast(data)
}

func (h *Hub) sendEvent(conn presence.Conn, event models.EventType, payload interface{}) {
	data, err := models.NewEnvelope(event, payload)
	if err != nil {
		logger.Error("Error encoding %s event: %v", event, err)
		return
	}
	conn.Send(data)
}

func (h *Hub) sendError(conn presence.Conn, message string) {
	h.sendEvent(conn, models.EventError, models.ErrorMessage{Message: message})
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
