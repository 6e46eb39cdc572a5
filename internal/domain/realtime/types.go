// internal/domain/realtime/types.go
package realtime

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents the frame kinds exchanged over the realtime connection
type EventType string

const (
	// Connection events
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeError        EventType = "error"

	// Subscription events
	EventTypeSubscribe EventType = "subscribe"
	EventTypeMessage   EventType = "message"
)

// Server-defined destinations. The /user/queue/* paths are private per-user
// channels; /topic/* is broadcast; /app/* are application inbound endpoints.
const (
	DestNotifications = "/user/queue/notifications"
	DestUnreadCount   = "/user/queue/unread-count"
	DestAnnouncements = "/topic/announcements"
	DestConnect       = "/app/connect"
	DestPing          = "/app/ping"
)

// Frame is the universal message format on the wire.
type Frame struct {
	ID          string          `json:"id,omitempty"` // For message tracking/acknowledgment
	Type        EventType       `json:"type"`
	Destination string          `json:"destination,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ConnectedData is the server's acknowledgment payload after a successful
// handshake.
type ConnectedData struct {
	UserID string `json:"userId"`
}

// SubscribeData asks the server to deliver frames for the given destinations.
type SubscribeData struct {
	Destinations []string `json:"destinations"`
}

// ErrorData for error frames
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ConnectionStatus is the externally visible connection state.
type ConnectionStatus struct {
	Connected         bool
	UserID            string
	LastConnected     time.Time
	ReconnectAttempts int
}

// NewFrame builds an outbound frame with a fresh tracking ID.
func NewFrame(eventType EventType, destination string, data interface{}) (*Frame, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return &Frame{
		ID:          ulid.Make().String(),
		Type:        eventType,
		Destination: destination,
		Data:        raw,
		Timestamp:   time.Now(),
	}, nil
}

func (f *Frame) ToJSON() ([]byte, error) {
	return json.Marshal(f)
}

func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return &f, err
}
