package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nexchat/internal/event"
	"nexchat/internal/model"
	"nexchat/internal/service"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const eventHandleTimeout = 10 * time.Second

// the registry is the transport port the services push through
var _ service.Notifier = (*PresenceRegistry)(nil)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

// Hub owns every connection's lifetime: it registers sockets, routes
// inbound events through a worker pool, and drives the presence
// registry and typing tracker when connections come and go.
type Hub struct {
	presence *PresenceRegistry
	typing   *TypingTracker
	chat     service.ChatService

	clients   map[*Client]struct{}
	clientsMu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(presence *PresenceRegistry, typing *TypingTracker, chat service.ChatService) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		presence:   presence,
		typing:     typing,
		chat:       chat,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		inbound:    make(chan inboundMessage, 4096), // buffer for burst handling
		ctx:        ctx,
		cancel:     cancel,
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in := <-h.inbound:
					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

func (h *Hub) Presence() *PresenceRegistry { return h.presence }
func (h *Hub) Typing() *TypingTracker { return h.typing }

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	h.clientsMu.Unlock()
}

// removeClient drops the socket and, when it was bound to a user,
// releases all presence and typing state that user held.
func (h *Hub) removeClient(c *Client) {
	h.clientsMu.Lock()
	_, known := h.clients[c]
	delete(h.clients, c)
	h.clientsMu.Unlock()

	if !known {
		return
	}

	if userID := c.UserID(); userID != "" {
		h.typing.StopAll(userID)
		h.presence.Disconnect(userID, c)
		log.Printf("user %s disconnected (client %s)", userID, c.ID)
	}
	c.Close()
}

// ClientCount returns the number of open sockets, bound or not.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// QueueStats reports inbound queue pressure.
func (h *Hub) QueueStats() (depth, capacity int) {
	return len(h.inbound), cap(h.inbound)
}

// Stop cancels the workers and tears down every socket. The inbound
// channel is never closed: a reader that already decoded a frame may
// still be sending into it, and its own ctx check ends it soon enough.
func (h *Hub) Stop() {
	h.cancel()

	h.clientsMu.RLock()
	for client := range h.clients {
		client.Close()
	}
	h.clientsMu.RUnlock()

	h.wg.Wait()
}

// -----------------------------------------------------------------
// Inbound event dispatch
// -----------------------------------------------------------------

func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventUserConnected:
		h.handleUserConnected(ev, c)
	case event.EventGetUserStatus:
		h.handleGetUserStatus(ev, c)
	case event.EventSendMessage:
		h.handleSendMessage(ev, c)
	case event.EventMessageRead:
		h.handleMessageRead(ev, c)
	case event.EventTypingStart:
		h.handleTyping(ev, c, true)
	case event.EventTypingStop:
		h.handleTyping(ev, c, false)
	case event.EventAddReaction:
		h.handleAddReaction(ev, c)
	default:
		log.Printf("unknown event type: %s", ev.Event)
	}
}

func (h *Hub) handleUserConnected(ev event.WsEvent, c *Client) {
	var payload model.ConnectPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		h.sendError(c, "invalid_payload", "Failed to parse user_connected payload")
		return
	}
	if _, err := primitive.ObjectIDFromHex(payload.UserID); err != nil {
		h.sendError(c, "invalid_user_id", "UserID must be a valid object id")
		return
	}

	c.Bind(payload.UserID)
	h.presence.Connect(payload.UserID, c)
	log.Printf("user %s connected (client %s)", payload.UserID, c.ID)
}

func (h *Hub) handleGetUserStatus(ev event.WsEvent, c *Client) {
	var payload model.UserStatusQuery
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		h.sendError(c, "invalid_payload", "Failed to parse get_user_status payload")
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, eventHandleTimeout)
	defer cancel()

	status := h.presence.QueryStatus(ctx, payload.UserID)
	if reply, ok := makeEvent(event.EventUserStatus, status); ok {
		c.Push(reply)
	}
}

func (h *Hub) handleSendMessage(ev event.WsEvent, c *Client) {
	senderID, ok := h.boundUser(c)
	if !ok {
		return
	}

	var payload model.SendMessagePayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		h.sendError(c, "invalid_payload", "Failed to parse send_message payload")
		return
	}
	receiverID, err := primitive.ObjectIDFromHex(payload.ReceiverID)
	if err != nil {
		h.sendError(c, "invalid_receiver_id", "ReceiverID must be a valid object id")
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, eventHandleTimeout)
	defer cancel()

	_, err = h.chat.SendMessage(ctx, service.SendMessageInput{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    payload.Content,
		MediaURL:   payload.MediaURL,
		MediaType:  payload.ContentType,
	})
	if err != nil {
		log.Printf("send_message failed for user %s: %v", senderID.Hex(), err)
		h.sendError(c, "send_failed", "Failed to send message")
	}
}

func (h *Hub) handleMessageRead(ev event.WsEvent, c *Client) {
	readerID, ok := h.boundUser(c)
	if !ok {
		return
	}

	var payload model.MessageReadPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		h.sendError(c, "invalid_payload", "Failed to parse message_read payload")
		return
	}

	ids := make([]primitive.ObjectID, 0, len(payload.MessageIDs))
	for _, raw := range payload.MessageIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, eventHandleTimeout)
	defer cancel()

	if _, err := h.chat.MarkRead(ctx, ids, readerID); err != nil {
		log.Printf("message_read failed for user %s: %v", readerID.Hex(), err)
	}
}

func (h *Hub) handleTyping(ev event.WsEvent, c *Client, start bool) {
	userID := c.UserID()
	if userID == "" {
		return
	}

	var payload model.TypingPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		h.sendError(c, "invalid_payload", "Failed to parse typing payload")
		return
	}
	if payload.ConversationID == "" || payload.ReceiverID == "" {
		return
	}

	if start {
		h.typing.Start(userID, payload.ConversationID, payload.ReceiverID)
	} else {
		h.typing.Stop(userID, payload.ConversationID, payload.ReceiverID)
	}
}

func (h *Hub) handleAddReaction(ev event.WsEvent, c *Client) {
	userID, ok := h.boundUser(c)
	if !ok {
		return
	}

	var payload model.AddReactionPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		h.sendError(c, "invalid_payload", "Failed to parse add_reaction payload")
		return
	}
	messageID, err := primitive.ObjectIDFromHex(payload.MessageID)
	if err != nil {
		h.sendError(c, "invalid_message_id", "MessageID must be a valid object id")
		return
	}
	if payload.Emoji == "" {
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, eventHandleTimeout)
	defer cancel()

	if _, err := h.chat.ToggleReaction(ctx, messageID, userID, payload.Emoji); err != nil {
		log.Printf("add_reaction failed for user %s: %v", userID.Hex(), err)
	}
}

func (h *Hub) boundUser(c *Client) (primitive.ObjectID, bool) {
	userID := c.UserID()
	if userID == "" {
		h.sendError(c, "not_connected", "Send user_connected before other events")
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *Hub) sendError(c *Client, code, message string) {
	if ev, ok := makeEvent(event.EventError, model.ErrorPayload{Code: code, Message: message}); ok {
		c.SafeSend(ev, sendTimeout)
	}
}

// -----------------------------------------------------------------
// WebSocket upgrade
// -----------------------------------------------------------------

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SetAllowedOrigins restricts websocket upgrades to the given origins.
func SetAllowedOrigins(origins []string) {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	websocketUpgrader.CheckOrigin = func(r *http.Request) bool {
		_, ok := allowed[r.Header.Get("Origin")]
		return ok
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	RegisterClient(conn, h)
}
