package model

import "time"

type MessageType string

const (
	MessageTypeText MessageType = "text"
)

// MaxMessageLen caps chat message bodies; enforced both at the edit surface
// and before insert.
const MaxMessageLen = 1000

// ChatMessage is one row of the flat chats table. A message belongs to
// exactly one (user_id, professional_id) pair; sender carries the role label
// of the authenticated principal that created it. created_at is assigned by
// the store, read_at transitions from null to a timestamp exactly once.
type ChatMessage struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	ProfessionalID string      `json:"professional_id"`
	Message        string      `json:"message"`
	Sender         Role        `json:"sender"`
	MessageType    MessageType `json:"message_type"`
	CreatedAt      time.Time   `json:"created_at"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
}

// ConversationKey identifies a conversation pair. The pair is ordered: the
// user side and the professional side are distinct columns, so a viewer's
// role decides which side of the key they occupy.
type ConversationKey struct {
	UserID         string `json:"user_id"`
	ProfessionalID string `json:"professional_id"`
}

// PairFor resolves the conversation key for a viewer and the selected
// contact: a user occupies the user_id side, a professional the
// professional_id side.
func PairFor(viewerID string, viewerRole Role, contactID string) ConversationKey {
	if viewerRole == RoleProfessional {
		return ConversationKey{UserID: contactID, ProfessionalID: viewerID}
	}
	return ConversationKey{UserID: viewerID, ProfessionalID: contactID}
}
