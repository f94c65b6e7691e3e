package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nexchat/internal/event"
	"nexchat/internal/media"
	"nexchat/internal/model"
	"nexchat/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SendMessageInput carries one outbound message. Exactly one of a
// trimmed non-empty Content, an attached File, or a pre-uploaded
// MediaURL must be present.
type SendMessageInput struct {
	SenderID   primitive.ObjectID
	ReceiverID primitive.ObjectID
	Content    string
	File       *media.File
	MediaURL   string
	MediaType  string // MIME type accompanying MediaURL
}

// ChatService is the message pipeline: validation, persistence, then
// best-effort fan-out. A failed push never rolls persistence back.
type ChatService interface {
	SendMessage(ctx context.Context, in SendMessageInput) (*model.PopulatedMessage, error)
	GetConversations(ctx context.Context, userID primitive.ObjectID) ([]model.PopulatedConversation, error)
	GetMessages(ctx context.Context, conversationID, userID primitive.ObjectID) ([]model.PopulatedMessage, error)
	MarkRead(ctx context.Context, messageIDs []primitive.ObjectID, readerID primitive.ObjectID) ([]model.Message, error)
	ToggleReaction(ctx context.Context, messageID, userID primitive.ObjectID, emoji string) ([]model.PopulatedReaction, error)
	DeleteMessage(ctx context.Context, messageID, requesterID primitive.ObjectID) error
}

type chatService struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	users         repo.UserRepository
	uploader      media.Uploader
	notifier      Notifier
	logger        *zap.Logger
}

func NewChatService(
	conversations repo.ConversationRepository,
	messages repo.MessageRepository,
	users repo.UserRepository,
	uploader media.Uploader,
	notifier Notifier,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		uploader:      uploader,
		notifier:      notifier,
		logger:        logger,
	}
}

// -----------------------------------------------------------------------------
// SendMessage
// -----------------------------------------------------------------------------

func (s *chatService) SendMessage(ctx context.Context, in SendMessageInput) (*model.PopulatedMessage, error) {
	content, contentType, mediaURL, err := s.resolveContent(ctx, in)
	if err != nil {
		return nil, err
	}

	conversation, err := s.resolveConversation(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ConversationID: conversation.ID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Content:        content,
		ContentType:    contentType,
		MediaURL:       mediaURL,
		Reactions:      []model.Reaction{},
		Status:         model.MessageStatusSent,
		CreatedAt:      time.Now(),
	}

	msgID, err := s.messages.Insert(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = msgID

	if err := s.conversations.RecordMessage(ctx, conversation.ID, &msgID); err != nil {
		return nil, err
	}

	populated, err := populateMessages(ctx, s.users, []model.Message{*msg})
	if err != nil {
		return nil, err
	}
	result := &populated[0]

	// Live delivery is best-effort. When the receiver is offline the
	// message stays "sent" and catches up on the next history fetch.
	if s.notifier.SendToUser(in.ReceiverID.Hex(), event.EventNewMessage, result) {
		delivered, err := s.messages.MarkDelivered(ctx, msgID)
		if err != nil {
			s.logger.Warn("delivered transition failed after push",
				zap.String("message_id", msgID.Hex()),
				zap.Error(err),
			)
		} else if delivered {
			result.Status = model.MessageStatusDelivered
		}
	}

	return result, nil
}

// resolveContent validates the send request and uploads any attachment.
// It runs before anything is persisted, so a rejected request leaves no
// state behind.
func (s *chatService) resolveContent(ctx context.Context, in SendMessageInput) (content, contentType string, mediaURL *string, err error) {
	switch {
	case in.File != nil:
		ct, err := media.ContentTypeOf(in.File.ContentType)
		if err != nil {
			return "", "", nil, ErrUnsupportedMedia
		}
		uploaded, err := s.uploader.Upload(ctx, *in.File)
		if err != nil {
			return "", "", nil, fmt.Errorf("upload attachment: %w", err)
		}
		return strings.TrimSpace(in.Content), ct, &uploaded.URL, nil

	case in.MediaURL != "":
		ct, err := media.ContentTypeOf(in.MediaType)
		if err != nil {
			return "", "", nil, ErrUnsupportedMedia
		}
		url := in.MediaURL
		return strings.TrimSpace(in.Content), ct, &url, nil

	case strings.TrimSpace(in.Content) != "":
		return strings.TrimSpace(in.Content), model.ContentTypeText, nil, nil

	default:
		return "", "", nil, ErrInvalidMessage
	}
}

// resolveConversation finds the conversation for the unordered pair,
// creating it lazily on the first message.
func (s *chatService) resolveConversation(ctx context.Context, a, b primitive.ObjectID) (*model.Conversation, error) {
	conversation, err := s.conversations.FindByParticipants(ctx, a, b)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	return s.conversations.Create(ctx, a, b)
}

// -----------------------------------------------------------------------------
// Conversations and history
// -----------------------------------------------------------------------------

func (s *chatService) GetConversations(ctx context.Context, userID primitive.ObjectID) ([]model.PopulatedConversation, error) {
	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	idSet := make(map[primitive.ObjectID]struct{})
	for i := range conversations {
		for _, p := range conversations[i].Participants {
			idSet[p] = struct{}{}
		}
	}
	summaries, err := s.users.Summaries(ctx, idSetToSlice(idSet))
	if err != nil {
		return nil, err
	}

	populated := make([]model.PopulatedConversation, 0, len(conversations))
	for i := range conversations {
		c := &conversations[i]
		pc := model.PopulatedConversation{
			ID: c.ID,
			Participants: Map(c.Participants, func(id primitive.ObjectID) model.UserSummary {
				return summaries[id]
			}),
			UnreadCount: c.UnreadCount,
			UpdatedAt:   c.UpdatedAt,
		}

		if c.LastMessageID != nil {
			last, err := s.messages.GetByID(ctx, *c.LastMessageID)
			if err == nil {
				preview := populateOne(last, summaries)
				pc.LastMessage = &preview
			} else if !errors.Is(err, repo.ErrNotFound) {
				return nil, err
			}
		}

		populated = append(populated, pc)
	}
	return populated, nil
}

// GetMessages returns the conversation history for a participant. As a
// side effect every message addressed to the caller becomes read, the
// unread counter resets and each true transition is announced to its
// sender.
func (s *chatService) GetMessages(ctx context.Context, conversationID, userID primitive.ObjectID) ([]model.PopulatedMessage, error) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, ErrForbidden
	}

	messages, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	unread := Filter(messages, func(m model.Message) bool {
		return m.ReceiverID == userID && m.Status != model.MessageStatusRead
	})

	if len(unread) > 0 {
		if _, err := s.messages.MarkConversationRead(ctx, conversationID, userID); err != nil {
			return nil, err
		}
	}
	if err := s.conversations.ResetUnread(ctx, conversationID); err != nil {
		return nil, err
	}

	s.notifyRead(unread)
	for i := range messages {
		if messages[i].ReceiverID == userID {
			messages[i].Status = model.MessageStatusRead
		}
	}

	return populateMessages(ctx, s.users, messages)
}

// -----------------------------------------------------------------------------
// Read acknowledgements
// -----------------------------------------------------------------------------

// MarkRead bulk-acknowledges messages for the reader. Ids not addressed
// to the reader are ignored, already-read messages transition nothing
// and trigger no notification.
func (s *chatService) MarkRead(ctx context.Context, messageIDs []primitive.ObjectID, readerID primitive.ObjectID) ([]model.Message, error) {
	eligible, err := s.messages.FindByIDsForReceiver(ctx, messageIDs, readerID)
	if err != nil {
		return nil, err
	}

	transitioned := Filter(eligible, func(m model.Message) bool {
		return m.Status != model.MessageStatusRead
	})

	if len(transitioned) > 0 {
		ids := Map(transitioned, func(m model.Message) primitive.ObjectID { return m.ID })
		if _, err := s.messages.MarkRead(ctx, ids, readerID); err != nil {
			return nil, err
		}
	}

	s.notifyRead(transitioned)
	for i := range eligible {
		eligible[i].Status = model.MessageStatusRead
	}
	return eligible, nil
}

// notifyRead emits one status update per transitioned message to its
// original sender, skipping offline senders.
func (s *chatService) notifyRead(transitioned []model.Message) {
	for i := range transitioned {
		s.notifier.SendToUser(
			transitioned[i].SenderID.Hex(),
			event.EventMessageStatusUpdate,
			model.MessageStatusUpdateEvent{
				MessageID: transitioned[i].ID.Hex(),
				Status:    model.MessageStatusRead,
			},
		)
	}
}

// -----------------------------------------------------------------------------
// Reactions
// -----------------------------------------------------------------------------

func (s *chatService) ToggleReaction(ctx context.Context, messageID, userID primitive.ObjectID, emoji string) ([]model.PopulatedReaction, error) {
	msg, err := s.messages.ToggleReaction(ctx, messageID, userID, emoji)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	populated, err := populateMessages(ctx, s.users, []model.Message{*msg})
	if err != nil {
		return nil, err
	}

	update := model.ReactionUpdateEvent{
		MessageID: messageID.Hex(),
		Reactions: populated[0].Reactions,
	}

	// Both participants get the same payload, online or not.
	s.notifier.SendToUser(msg.SenderID.Hex(), event.EventReactionUpdate, update)
	s.notifier.SendToUser(msg.ReceiverID.Hex(), event.EventReactionUpdate, update)

	return populated[0].Reactions, nil
}

// -----------------------------------------------------------------------------
// Delete
// -----------------------------------------------------------------------------

func (s *chatService) DeleteMessage(ctx context.Context, messageID, requesterID primitive.ObjectID) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if msg.SenderID != requesterID {
		return ErrForbidden
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		return err
	}

	s.notifier.SendToUser(msg.ReceiverID.Hex(), event.EventMessageDeleted, model.MessageDeletedEvent{
		MessageID: messageID.Hex(),
	})
	return nil
}
