package service

import (
	"context"
	"testing"
	"time"

	"nexchat/internal/event"
	"nexchat/internal/media"
	"nexchat/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type chatFixture struct {
	service  ChatService
	notifier *recordingNotifier
	users    *fakeUserRepo
	convs    *fakeConversationRepo
	msgs     *fakeMessageRepo

	alice *model.User
	bob   *model.User
}

func newChatFixture(t *testing.T, onlineUsers ...string) *chatFixture {
	t.Helper()

	alice := &model.User{ID: primitive.NewObjectID(), Username: "alice"}
	bob := &model.User{ID: primitive.NewObjectID(), Username: "bob"}

	users := newFakeUserRepo(alice, bob)
	convs := newFakeConversationRepo()
	msgs := newFakeMessageRepo()
	notifier := newRecordingNotifier(onlineUsers...)

	return &chatFixture{
		service:  NewChatService(convs, msgs, users, &fakeUploader{}, notifier, zap.NewNop()),
		notifier: notifier,
		users:    users,
		convs:    convs,
		msgs:     msgs,
		alice:    alice,
		bob:      bob,
	}
}

func (f *chatFixture) send(t *testing.T, content string) *model.PopulatedMessage {
	t.Helper()
	msg, err := f.service.SendMessage(context.Background(), SendMessageInput{
		SenderID:   f.alice.ID,
		ReceiverID: f.bob.ID,
		Content:    content,
	})
	require.NoError(t, err)
	return msg
}

func TestSendMessageReceiverOffline(t *testing.T) {
	f := newChatFixture(t)

	msg := f.send(t, "hello bob")

	assert.Equal(t, model.MessageStatusSent, msg.Status)
	assert.Equal(t, "alice", msg.Sender.Username)
	assert.Equal(t, "bob", msg.Receiver.Username)
	assert.Empty(t, f.notifier.sentTo(f.bob.ID.Hex(), event.EventNewMessage))

	stored, err := f.msgs.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusSent, stored.Status)
}

func TestSendMessageReceiverOnline(t *testing.T) {
	f := newChatFixture(t)
	f.notifier.online[f.bob.ID.Hex()] = true

	msg := f.send(t, "hello bob")

	assert.Equal(t, model.MessageStatusDelivered, msg.Status)
	assert.Len(t, f.notifier.sentTo(f.bob.ID.Hex(), event.EventNewMessage), 1)

	stored, err := f.msgs.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusDelivered, stored.Status)
}

func TestSendMessageCreatesConversationOnce(t *testing.T) {
	f := newChatFixture(t)

	first := f.send(t, "one")
	second := f.send(t, "two")

	assert.Equal(t, first.ConversationID, second.ConversationID)

	// Replying uses the same thread regardless of direction.
	reply, err := f.service.SendMessage(context.Background(), SendMessageInput{
		SenderID:   f.bob.ID,
		ReceiverID: f.alice.ID,
		Content:    "three",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, reply.ConversationID)
	assert.Len(t, f.convs.conversations, 1)
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.service.SendMessage(context.Background(), SendMessageInput{
		SenderID:   f.alice.ID,
		ReceiverID: f.bob.ID,
		Content:    "   ",
	})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Empty(t, f.msgs.messages)
	assert.Empty(t, f.convs.conversations)
}

func TestSendMessageWithAttachment(t *testing.T) {
	f := newChatFixture(t)

	msg, err := f.service.SendMessage(context.Background(), SendMessageInput{
		SenderID:   f.alice.ID,
		ReceiverID: f.bob.ID,
		File: &media.File{
			Name:        "pic.png",
			ContentType: "image/png",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ContentTypeImage, msg.ContentType)
	require.NotNil(t, msg.MediaURL)
	assert.Equal(t, "https://cdn.test/pic.png", *msg.MediaURL)
}

func TestSendMessageRejectsUnsupportedAttachment(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.service.SendMessage(context.Background(), SendMessageInput{
		SenderID:   f.alice.ID,
		ReceiverID: f.bob.ID,
		File: &media.File{
			Name:        "notes.pdf",
			ContentType: "application/pdf",
		},
	})
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
	assert.Empty(t, f.msgs.messages)
}

func TestMarkReadNotifiesSenderPerTransition(t *testing.T) {
	f := newChatFixture(t)
	f.notifier.online[f.alice.ID.Hex()] = true

	first := f.send(t, "one")
	second := f.send(t, "two")

	acked, err := f.service.MarkRead(context.Background(), []primitive.ObjectID{first.ID, second.ID}, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, acked, 2)
	for _, m := range acked {
		assert.Equal(t, model.MessageStatusRead, m.Status)
	}

	updates := f.notifier.sentTo(f.alice.ID.Hex(), event.EventMessageStatusUpdate)
	require.Len(t, updates, 2)
	for _, u := range updates {
		payload := u.Payload.(model.MessageStatusUpdateEvent)
		assert.Equal(t, model.MessageStatusRead, payload.Status)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newChatFixture(t)
	f.notifier.online[f.alice.ID.Hex()] = true

	msg := f.send(t, "once")
	ids := []primitive.ObjectID{msg.ID}

	_, err := f.service.MarkRead(context.Background(), ids, f.bob.ID)
	require.NoError(t, err)

	acked, err := f.service.MarkRead(context.Background(), ids, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, acked, 1)
	assert.Equal(t, model.MessageStatusRead, acked[0].Status)

	// The second ack transitions nothing, so only one notification went out.
	assert.Len(t, f.notifier.sentTo(f.alice.ID.Hex(), event.EventMessageStatusUpdate), 1)
}

func TestMarkReadIgnoresForeignMessages(t *testing.T) {
	f := newChatFixture(t)

	msg := f.send(t, "for bob")

	// Alice cannot ack her own outgoing message.
	acked, err := f.service.MarkRead(context.Background(), []primitive.ObjectID{msg.ID}, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, acked)

	stored, err := f.msgs.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusSent, stored.Status)
}

func TestGetMessagesMarksHistoryRead(t *testing.T) {
	f := newChatFixture(t)
	f.notifier.online[f.alice.ID.Hex()] = true

	first := f.send(t, "one")
	f.send(t, "two")

	history, err := f.service.GetMessages(context.Background(), first.ConversationID, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, m := range history {
		assert.Equal(t, model.MessageStatusRead, m.Status)
	}

	assert.Len(t, f.notifier.sentTo(f.alice.ID.Hex(), event.EventMessageStatusUpdate), 2)

	conv, err := f.convs.GetByID(context.Background(), first.ConversationID)
	require.NoError(t, err)
	assert.Zero(t, conv.UnreadCount)

	// Second fetch finds nothing unread and notifies nobody.
	_, err = f.service.GetMessages(context.Background(), first.ConversationID, f.bob.ID)
	require.NoError(t, err)
	assert.Len(t, f.notifier.sentTo(f.alice.ID.Hex(), event.EventMessageStatusUpdate), 2)
}

func TestGetMessagesLeavesOwnMessagesAlone(t *testing.T) {
	f := newChatFixture(t)

	msg := f.send(t, "outgoing")

	// The sender fetching history must not mark their own message read.
	history, err := f.service.GetMessages(context.Background(), msg.ConversationID, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.MessageStatusSent, history[0].Status)
}

func TestGetMessagesRejectsOutsider(t *testing.T) {
	f := newChatFixture(t)
	mallory := primitive.NewObjectID()

	msg := f.send(t, "private")

	_, err := f.service.GetMessages(context.Background(), msg.ConversationID, mallory)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGetMessagesUnknownConversation(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.service.GetMessages(context.Background(), primitive.NewObjectID(), f.alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetConversationsIncludesPreview(t *testing.T) {
	f := newChatFixture(t)

	msg := f.send(t, "latest")

	conversations, err := f.service.GetConversations(context.Background(), f.bob.ID)
	require.NoError(t, err)
	require.Len(t, conversations, 1)

	c := conversations[0]
	assert.Equal(t, int64(1), c.UnreadCount)
	require.NotNil(t, c.LastMessage)
	assert.Equal(t, msg.ID, c.LastMessage.ID)
	assert.Len(t, c.Participants, 2)
}

func TestToggleReactionNotifiesBothParticipants(t *testing.T) {
	f := newChatFixture(t)
	f.notifier.online[f.alice.ID.Hex()] = true
	f.notifier.online[f.bob.ID.Hex()] = true

	msg := f.send(t, "react to me")

	reactions, err := f.service.ToggleReaction(context.Background(), msg.ID, f.bob.ID, "👍")
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, "bob", reactions[0].User.Username)
	assert.Equal(t, "👍", reactions[0].Emoji)

	assert.Len(t, f.notifier.sentTo(f.alice.ID.Hex(), event.EventReactionUpdate), 1)
	assert.Len(t, f.notifier.sentTo(f.bob.ID.Hex(), event.EventReactionUpdate), 1)

	// Toggling the same emoji again removes the reaction.
	reactions, err = f.service.ToggleReaction(context.Background(), msg.ID, f.bob.ID, "👍")
	require.NoError(t, err)
	assert.Empty(t, reactions)

	// One event per toggle per participant, and the second event's
	// payload shows the reactor gone.
	aliceUpdates := f.notifier.sentTo(f.alice.ID.Hex(), event.EventReactionUpdate)
	bobUpdates := f.notifier.sentTo(f.bob.ID.Hex(), event.EventReactionUpdate)
	require.Len(t, aliceUpdates, 2)
	require.Len(t, bobUpdates, 2)
	last := aliceUpdates[1].Payload.(model.ReactionUpdateEvent)
	assert.Equal(t, msg.ID.Hex(), last.MessageID)
	assert.Empty(t, last.Reactions)
	assert.Equal(t, last, bobUpdates[1].Payload.(model.ReactionUpdateEvent))
}

func TestToggleReactionUnknownMessage(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.service.ToggleReaction(context.Background(), primitive.NewObjectID(), f.alice.ID, "👍")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	f := newChatFixture(t)
	f.notifier.online[f.bob.ID.Hex()] = true

	msg := f.send(t, "regret")

	err := f.service.DeleteMessage(context.Background(), msg.ID, f.bob.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.service.DeleteMessage(context.Background(), msg.ID, f.alice.ID))

	deletions := f.notifier.sentTo(f.bob.ID.Hex(), event.EventMessageDeleted)
	require.Len(t, deletions, 1)
	payload := deletions[0].Payload.(model.MessageDeletedEvent)
	assert.Equal(t, msg.ID.Hex(), payload.MessageID)

	err = f.service.DeleteMessage(context.Background(), msg.ID, f.alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeliveredNeverOverwritesRead(t *testing.T) {
	f := newChatFixture(t)

	msg := f.send(t, "raced")

	_, err := f.service.MarkRead(context.Background(), []primitive.ObjectID{msg.ID}, f.bob.ID)
	require.NoError(t, err)

	// A delivery ack that lands after the read must be a no-op: the
	// transition only fires from sent.
	advanced, err := f.msgs.MarkDelivered(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.False(t, advanced)

	stored, err := f.msgs.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusRead, stored.Status)
}

func TestSendMessageKeepsCreationTime(t *testing.T) {
	f := newChatFixture(t)

	before := time.Now()
	msg := f.send(t, "timestamped")

	assert.False(t, msg.CreatedAt.Before(before.Add(-time.Second)))
	assert.False(t, msg.CreatedAt.After(time.Now().Add(time.Second)))
}
