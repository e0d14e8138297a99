package chat

import "errors"

var (
	// ErrInvalidContent rejects empty-after-trim or over-long messages.
	ErrInvalidContent = errors.New("invalid message content")
	// ErrNotAParticipant rejects senders who are not members of the room.
	ErrNotAParticipant = errors.New("sender is not a participant of the room")
	// ErrUnknownUser rejects chat initiation toward a user that does not exist.
	ErrUnknownUser = errors.New("target user not found")
	// ErrSelfChat rejects a private chat with oneself.
	ErrSelfChat = errors.New("cannot start a private chat with yourself")
)
