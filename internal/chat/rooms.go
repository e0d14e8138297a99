package chat

import (
	"context"
	"errors"
	"fmt"

	"gps-chat/internal/database"
	"gps-chat/pkg/logger"
)

// RoomResolver finds or creates the unique private room between two users.
type RoomResolver struct {
	store database.Store
}

func NewRoomResolver(store database.Store) *RoomResolver {
	return &RoomResolver{store: store}
}

// ResolvePrivateRoom returns the room id shared by the two users, creating it
// if necessary, together with the target's username. Concurrent resolution for
// the same pair converges on one room: creation relies on the store's
// unique-pair constraint with conflict-as-success.
func (r *RoomResolver) ResolvePrivateRoom(ctx context.Context, userID, targetUserID int) (int, string, error) {
	if userID == targetUserID {
		return 0, "", ErrSelfChat
	}

	targetUsername, err := r.store.LookupUsername(ctx, targetUserID)
	if errors.Is(err, database.ErrNotFound) {
		return 0, "", ErrUnknownUser
	}
	if err != nil {
		return 0, "", fmt.Errorf("looking up target user: %w", err)
	}

	roomID, err := r.store.FindPrivateRoom(ctx, userID, targetUserID)
	if err == nil {
		logger.Debug("Found existing private room %d for users %d and %d", roomID, userID, targetUserID)
		return roomID, targetUsername, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return 0, "", fmt.Errorf("finding private room: %w", err)
	}

	roomID, err = r.store.CreatePrivateRoom(ctx, userID, targetUserID)
	if err != nil {
		return 0, "", fmt.Errorf("creating private room: %w", err)
	}

	logger.Info("Created private room %d for users %d and %d", roomID, userID, targetUserID)
	return roomID, targetUsername, nil
}
