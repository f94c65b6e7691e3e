package event

import "encoding/json"

// Inbound event names (client -> server).
const (
	EventUserConnected = "user_connected"
	EventGetUserStatus = "get_user_status"
	EventSendMessage   = "send_message"
	EventMessageRead   = "message_read"
	EventTypingStart   = "typing_start"
	EventTypingStop    = "typing_stop"
	EventAddReaction   = "add_reaction"
)

// Outbound event names (server -> client).
const (
	EventUserStatus          = "user_status"
	EventUserTyping          = "user_typing"
	EventNewMessage          = "newMessage"
	EventMessageStatusUpdate = "message_status_update"
	EventReactionUpdate      = "reaction_update"
	EventMessageDeleted      = "message_deleted"
	EventNewStatus           = "new_status"
	EventStatusViewed        = "status_viewed"
	EventStatusDeleted       = "status_deleted"
	EventError               = "message_error"
)

// WsEvent is the envelope for every frame on the socket. Payload stays
// raw until the named handler decodes it into its typed shape.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}
