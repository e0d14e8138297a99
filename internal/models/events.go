package models

import "encoding/json"

type EventType string

// Event names mirror the socket protocol the map client speaks.
const (
	// inbound
	EventUpdateLocation EventType = "update location"
	EventSendMessage    EventType = "send message"
	EventInitiateChat   EventType = "initiate private chat"
	EventClientPing     EventType = "client_ping"
	EventBackgroundMode EventType = "background_mode"
	EventGoBackground   EventType = "app_going_background"
	EventGoForeground   EventType = "app_going_foreground"

	// outbound
	EventOnlineUsers EventType = "online users update"
	EventNewMessage  EventType = "new message"
	EventChatStarted EventType = "private chat started"
	EventClientPong  EventType = "client_pong"
	EventError       EventType = "error"
)

// Envelope is the single frame format exchanged over a connection.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event EventType, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// LocationUpdate is a best-effort telemetry payload. Optional fields stay nil
// when the client does not report them.
type LocationUpdate struct {
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Timestamp *int64   `json:"timestamp,omitempty"`
}

type SendMessageRequest struct {
	RoomID  int    `json:"roomId"`
	Content string `json:"content"`
}

type InitiateChatRequest struct {
	TargetUserID int `json:"targetUserId"`
}

type ChatStarted struct {
	RoomID   int    `json:"roomId"`
	RoomName string `json:"roomName"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}
