package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation represents a 1:1 chat thread in MongoDB. Participants
// are stored sorted so the unordered pair maps to exactly one document.
type Conversation struct {
	ID            primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Participants  []primitive.ObjectID `json:"participants" bson:"participants"`
	LastMessageID *primitive.ObjectID  `json:"lastMessageId" bson:"last_message"`
	UnreadCount   int64                `json:"unreadCount" bson:"unread_count"`
	CreatedAt     time.Time            `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time            `json:"updatedAt" bson:"updated_at"`
}

// HasParticipant reports whether the user belongs to this conversation.
func (c *Conversation) HasParticipant(userID primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// PopulatedConversation is the wire view of a conversation with
// participant identities and the last message expanded.
type PopulatedConversation struct {
	ID           primitive.ObjectID `json:"id"`
	Participants []UserSummary      `json:"participants"`
	LastMessage  *PopulatedMessage  `json:"lastMessage"`
	UnreadCount  int64              `json:"unreadCount"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}
