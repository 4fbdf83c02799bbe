package ws

import (
	"time"

	"github.com/mindcare/internal/model"
)

type EventType string

// Incoming event types.
const (
	EventSubscribe   EventType = "subscribe"
	EventUnsubscribe EventType = "unsubscribe"
	EventNewMessage  EventType = "new_message"
	EventMarkRead    EventType = "mark_read"
)

// Outgoing event types.
const (
	EventSubscribed    EventType = "subscribed"
	EventMessageInsert EventType = "message_insert"
	EventMessageUpdate EventType = "message_update"
	EventPresenceSync  EventType = "presence_sync"
	EventPresenceJoin  EventType = "presence_join"
	EventPresenceLeave EventType = "presence_leave"
	EventError         EventType = "error"
)

// IncomingMessage is what the client sends to the server. contact_id names
// the other side of the conversation; the server derives the (user,
// professional) pair from the sender's role.
type IncomingMessage struct {
	Type      EventType `json:"type"`
	ContactID string    `json:"contact_id,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// SubscribedPayload acknowledges the active subscription.
type SubscribedPayload struct {
	UserID         string `json:"user_id"`
	ProfessionalID string `json:"professional_id"`
}

// MessageUpdatePayload is broadcast when a stored message row changes;
// currently only read_at transitions null -> timestamp.
type MessageUpdatePayload struct {
	MessageID string    `json:"message_id"`
	ReadAt    time.Time `json:"read_at"`
}

// PresencePayload is broadcast on presence join/leave.
type PresencePayload struct {
	UserID   string     `json:"user_id"`
	Role     model.Role `json:"role"`
	OnlineAt time.Time  `json:"online_at"`
}

// PresenceSyncPayload carries the full current presence set, sent once to
// each client right after it connects.
type PresenceSyncPayload struct {
	Online []PresencePayload `json:"online"`
}
