package database

import (
	"context"
	"errors"
	"time"

	"gps-chat/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned when creating a user whose name is taken.
var ErrDuplicateUsername = errors.New("username already taken")

type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	LookupUsername(ctx context.Context, userID int) (string, error)
}

type RoomRepository interface {
	// FindPrivateRoom returns the id of the non-public room both users
	// participate in, or ErrNotFound.
	FindPrivateRoom(ctx context.Context, userA, userB int) (int, error)
	// CreatePrivateRoom creates the room and both participant rows as one
	// atomic unit. Concurrent calls for the same pair must converge on a
	// single room id.
	CreatePrivateRoom(ctx context.Context, userA, userB int) (int, error)
	IsParticipant(ctx context.Context, roomID, userID int) (bool, error)
	ParticipantsOf(ctx context.Context, roomID int) ([]int, error)
}

type MessageRepository interface {
	InsertMessage(ctx context.Context, roomID, senderID int, content string) (id int, createdAt time.Time, err error)
	RoomMessages(ctx context.Context, roomID int) ([]*models.Message, error)
}

type Store interface {
	UserRepository
	RoomRepository
	MessageRepository
	Close() error
}
