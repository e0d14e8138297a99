package models

import "time"

// Message field names follow the wire format the map client already renders.
type Message struct {
	ID             int       `json:"id"`
	RoomID         int       `json:"room_id"`
	Content        string    `json:"content"`
	SenderID       int       `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	CreatedAt      time.Time `json:"created_at"`
}
