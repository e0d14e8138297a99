package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"gps-chat/internal/auth"
	"gps-chat/internal/database"
	"gps-chat/pkg/logger"
)

// RoomHandlers serves room history over REST. This is the catch-up path for
// participants who were offline when a message was fanned out.
type RoomHandlers struct {
	authService *auth.Service
	store       database.Store
}

func NewRoomHandlers(authService *auth.Service, store database.Store) *RoomHandlers {
	return &RoomHandlers{
		authService: authService,
		store:       store,
	}
}

// GetRoomMessages handles GET /rooms/{id}/messages. Only participants may
// read a room's history.
func (h *RoomHandlers) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	identity, err := h.authService.VerifyToken(token)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "Not authorized.")
		return
	}

	roomID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || roomID <= 0 {
		writeJSONError(w, http.StatusBadRequest, "Invalid room id.")
		return
	}

	isParticipant, err := h.store.IsParticipant(r.Context(), roomID, identity.UserID)
	if err != nil {
		logger.Error("Error checking room participation: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Server error.")
		return
	}
	if !isParticipant {
		writeJSONError(w, http.StatusForbidden, "You are not a participant of this chat room.")
		return
	}

	messages, err := h.store.RoomMessages(r.Context(), roomID)
	if err != nil {
		logger.Error("Error loading messages for room %d: %v", roomID, err)
		writeJSONError(w, http.StatusInternalServerError, "Server error.")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}
