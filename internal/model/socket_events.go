package model

import "time"

// Inbound socket payloads. Shapes are validated at the boundary before
// any registry or service is touched.

// ConnectPayload binds the connection to a user identity.
type ConnectPayload struct {
	UserID string `json:"userId"`
}

// UserStatusQuery asks for a one-off presence answer for one user.
type UserStatusQuery struct {
	UserID string `json:"userId"`
}

// TypingPayload drives typing_start and typing_stop.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	ReceiverID     string `json:"receiverId"`
}

// SendMessagePayload carries a socket-originated send. Media must be
// uploaded out of band; only the resulting URL travels here.
type SendMessagePayload struct {
	ReceiverID  string `json:"receiverId"`
	Content     string `json:"content"`
	MediaURL    string `json:"mediaUrl"`
	ContentType string `json:"contentType"`
}

// MessageReadPayload acknowledges a batch of message ids as read.
type MessageReadPayload struct {
	MessageIDs []string `json:"messageIds"`
}

// AddReactionPayload toggles the connected user's reaction on a message.
type AddReactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// Outbound socket payloads.

// UserStatusEvent announces a presence change, or answers a status query.
type UserStatusEvent struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// UserTypingEvent tells one peer that a user started or stopped typing.
type UserTypingEvent struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// MessageStatusUpdateEvent notifies a sender of one status transition.
type MessageStatusUpdateEvent struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// ReactionUpdateEvent fans the full reaction set of a message out to
// both participants.
type ReactionUpdateEvent struct {
	MessageID string              `json:"messageId"`
	Reactions []PopulatedReaction `json:"reactions"`
}

// MessageDeletedEvent tells the receiver a message was removed.
type MessageDeletedEvent struct {
	MessageID string `json:"messageId"`
}

// StatusViewedEvent privately notifies a status owner of a new viewer.
type StatusViewedEvent struct {
	StatusID     string        `json:"statusId"`
	ViewerID     string        `json:"viewerId"`
	TotalViewers int           `json:"totalViewers"`
	Viewers      []UserSummary `json:"viewers"`
}

// StatusDeletedEvent announces a removed status post.
type StatusDeletedEvent struct {
	StatusID string `json:"statusId"`
}

// ErrorPayload is sent to a client when an inbound event fails.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
