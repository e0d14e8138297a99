package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"gps-chat/internal/database"
	"gps-chat/internal/models"
	"gps-chat/internal/presence"
	"gps-chat/pkg/logger"
)

// maxMessageLength bounds chat message content after trimming, in characters.
const maxMessageLength = 1000

// MessageService validates, persists and fans out chat messages.
type MessageService struct {
	store    database.Store
	registry *presence.Registry
}

func NewMessageService(store database.Store, registry *presence.Registry) *MessageService {
	return &MessageService{
		store:    store,
		registry: registry,
	}
}

// Send runs the message through validation, persists it, then delivers it to
// every participant of the room who is currently online. Delivery is
// socket-addressed: the sender's own client receives the message through the
// same path, and offline participants pick it up from room history later.
func (s *MessageService) Send(ctx context.Context, sender models.Identity, roomID int, rawContent string) (*models.Message, error) {
	content := strings.TrimSpace(rawContent)
	if content == "" || utf8.RuneCountInString(content) > maxMessageLength {
		return nil, ErrInvalidContent
	}

	isParticipant, err := s.store.IsParticipant(ctx, roomID, sender.UserID)
	if err != nil {
		return nil, fmt.Errorf("checking room participation: %w", err)
	}
	if !isParticipant {
		return nil, ErrNotAParticipant
	}

	id, createdAt, err := s.store.InsertMessage(ctx, roomID, sender.UserID, content)
	if err != nil {
		return nil, fmt.Errorf("persisting message: %w", err)
	}

	message := &models.Message{
		ID:             id,
		RoomID:         roomID,
		Content:        content,
		SenderID:       sender.UserID,
		SenderUsername: sender.Username,
		CreatedAt:      createdAt,
	}

	if err := s.fanOut(ctx, message); err != nil {
		// The message is already durable; participants who missed the
		// push will see it on the next history fetch.
		logger.Error("Fan-out for message %d failed: %v", id, err)
	}

	logger.Info("Message sent: %s -> room %d", sender.Username, roomID)
	return message, nil
}

func (s *MessageService) fanOut(ctx context.Context, message *models.Message) error {
	participants, err := s.store.ParticipantsOf(ctx, message.RoomID)
	if err != nil {
		return fmt.Errorf("loading room participants: %w", err)
	}

	data, err := models.NewEnvelope(models.EventNewMessage, message)
	if err != nil {
		return fmt.Errorf("encoding message event: %w", err)
	}

	for _, userID := range participants {
		if conn, ok := s.registry.ConnOf(userID); ok {
			conn.Send(data)
		}
	}
	return nil
}
