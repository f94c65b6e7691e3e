package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message status lifecycle. Transitions are monotonic: once read, a
// message never goes back to sent or delivered.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// Content types a message or status post may carry.
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
	ContentTypeVideo = "video"
)

// Message represents a chat message in MongoDB.
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	SenderID       primitive.ObjectID `json:"senderId" bson:"sender_id"`
	ReceiverID     primitive.ObjectID `json:"receiverId" bson:"receiver_id"`
	Content        string             `json:"content" bson:"content"`
	ContentType    string             `json:"contentType" bson:"content_type"`
	MediaURL       *string            `json:"mediaUrl" bson:"media_url"`
	Reactions      []Reaction         `json:"reactions" bson:"reactions"`
	Status         string             `json:"status" bson:"status"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt      *time.Time         `json:"updatedAt" bson:"updated_at"`
}

// Reaction is one user's emoji on a message. At most one per user.
type Reaction struct {
	UserID primitive.ObjectID `json:"userId" bson:"user_id"`
	Emoji  string             `json:"emoji" bson:"emoji"`
}

// ToggleReaction applies one toggle to a reaction set and returns the
// result. Same emoji again removes the entry, a different emoji replaces
// it, a missing entry is appended. Applying the same toggle twice always
// restores the prior set.
func ToggleReaction(reactions []Reaction, userID primitive.ObjectID, emoji string) []Reaction {
	out := make([]Reaction, 0, len(reactions)+1)
	found := false
	for _, r := range reactions {
		if r.UserID != userID {
			out = append(out, r)
			continue
		}
		found = true
		if r.Emoji == emoji {
			// toggle off
			continue
		}
		out = append(out, Reaction{UserID: userID, Emoji: emoji})
	}
	if !found {
		out = append(out, Reaction{UserID: userID, Emoji: emoji})
	}
	return out
}

// PopulatedReaction carries the reacting user expanded for the wire.
type PopulatedReaction struct {
	User  UserSummary `json:"user"`
	Emoji string      `json:"emoji"`
}

// PopulatedMessage is the wire view of a message with sender, receiver
// and reaction identities expanded.
type PopulatedMessage struct {
	ID             primitive.ObjectID  `json:"id"`
	ConversationID primitive.ObjectID  `json:"conversationId"`
	Sender         UserSummary         `json:"sender"`
	Receiver       UserSummary         `json:"receiver"`
	Content        string              `json:"content"`
	ContentType    string              `json:"contentType"`
	MediaURL       *string             `json:"mediaUrl"`
	Reactions      []PopulatedReaction `json:"reactions"`
	Status         string              `json:"status"`
	CreatedAt      time.Time           `json:"createdAt"`
}
