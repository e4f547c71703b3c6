package dbmongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names.
const (
	CommunitiesCollection   = "communities"
	ConversationsCollection = "conversations"
	MessagesCollection      = "direct_messages"
)

// Community is an aggregate root: it owns its member set and its embedded
// message log. Messages are appended in chronological order and never move
// to another parent.
type Community struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Avatar      string             `bson:"avatar" json:"avatar"`
	Members     []string           `bson:"members" json:"members"`
	Messages    []CommunityMessage `bson:"messages" json:"-"`
	CreatedBy   string             `bson:"createdBy" json:"createdBy"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CommunityMessage is embedded in its community document. Sender is stored
// as an id only; profile expansion happens at the read boundary.
type CommunityMessage struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	Sender    string             `bson:"sender" json:"sender"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Conversation is the aggregate root for a 1:1 chat. Participants are kept
// sorted and mirrored into ParticipantsKey, the scalar the unique index
// hangs off (a unique index on the array itself would be multikey and
// enforce per-element uniqueness instead of pair uniqueness).
type Conversation struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Participants    []string            `bson:"participants" json:"participants"`
	ParticipantsKey string              `bson:"participantsKey" json:"-"`
	LastMessageID   *primitive.ObjectID `bson:"lastMessageId,omitempty" json:"lastMessageId,omitempty"`
	LastMessageAt   time.Time           `bson:"lastMessageAt" json:"lastMessageAt"`
	IsActive        bool                `bson:"isActive" json:"isActive"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Message types for direct messages.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// DirectMessage belongs to exactly one conversation for its whole lifetime.
type DirectMessage struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ConversationID primitive.ObjectID `bson:"conversationId" json:"conversationId"`
	Sender         string             `bson:"sender" json:"sender"`
	Content        string             `bson:"content" json:"content"`
	MessageType    string             `bson:"messageType" json:"messageType"`
	IsRead         bool               `bson:"isRead" json:"isRead"`
	ReadAt         *time.Time         `bson:"readAt,omitempty" json:"readAt,omitempty"`
	IsEdited       bool               `bson:"isEdited" json:"isEdited"`
	EditedAt       *time.Time         `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}

// ValidMessageType reports whether t is one of the allowed message types.
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}
