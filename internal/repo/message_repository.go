package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nexchat/internal/db"
	"nexchat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MessageRepository owns the message collection. Status transitions go
// through conditional updates so they can only move forward
// (sent -> delivered -> read); a late delivery ack can never clobber a
// read that already landed.
type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Message, error)
	ListByConversation(ctx context.Context, conversationID primitive.ObjectID) ([]model.Message, error)
	FindByIDsForReceiver(ctx context.Context, ids []primitive.ObjectID, receiverID primitive.ObjectID) ([]model.Message, error)
	MarkDelivered(ctx context.Context, id primitive.ObjectID) (bool, error)
	MarkRead(ctx context.Context, ids []primitive.ObjectID, receiverID primitive.ObjectID) (int64, error)
	MarkConversationRead(ctx context.Context, conversationID, receiverID primitive.ObjectID) (int64, error)
	ToggleReaction(ctx context.Context, id, userID primitive.ObjectID, emoji string) (*model.Message, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger

	// serializes reaction read-modify-write per message id
	inFlightOps     map[string]struct{}
	inFlightOpsLock sync.Mutex
	inFlightCond    *sync.Cond
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	m := &messageRepository{
		mongoRepo:   repo,
		logger:      logger,
		inFlightOps: make(map[string]struct{}),
	}
	m.inFlightCond = sync.NewCond(&m.inFlightOpsLock)
	return m
}

// -----------------------------------------------------------------------------
// Insert
// -----------------------------------------------------------------------------

func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (primitive.ObjectID, error) {
	if msg == nil {
		return primitive.NilObjectID, errors.New("invalid message: message cannot be nil")
	}
	if msg.ConversationID.IsZero() {
		return primitive.NilObjectID, errors.New("invalid message: conversation id cannot be empty")
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return primitive.NilObjectID, err
			}
		}

		result, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			insertedID := primitive.NilObjectID
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				insertedID = oid
			}

			m.logger.Info("message inserted",
				zap.String("message_id", insertedID.Hex()),
				zap.String("conversation_id", msg.ConversationID.Hex()),
				zap.Int("attempt", attempt+1),
			)
			return insertedID, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("conversation_id", msg.ConversationID.Hex()),
	)
	return primitive.NilObjectID, fmt.Errorf("insert message failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (m *messageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, m.handleReadError(err, id.Hex())
	}
	return msg, nil
}

func (m *messageRepository) ListByConversation(ctx context.Context, conversationID primitive.ObjectID) ([]model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("conversation_id", conversationID).Build()
	messages, err := m.mongoRepo.FindAll(ctx, filter, db.Sorted("created_at", false))
	if err != nil {
		return nil, m.handleReadError(err, conversationID.Hex())
	}

	m.logger.Debug("messages retrieved",
		zap.String("conversation_id", conversationID.Hex()),
		zap.Int("count", len(messages)),
	)
	return messages, nil
}

// FindByIDsForReceiver returns only the messages in ids that are
// addressed to receiverID. Ids addressed to anyone else are dropped,
// not reported.
func (m *messageRepository) FindByIDsForReceiver(ctx context.Context, ids []primitive.ObjectID, receiverID primitive.ObjectID) ([]model.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().In("_id", ids).Eq("receiver_id", receiverID).Build()
	messages, err := m.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, m.handleReadError(err, receiverID.Hex())
	}
	return messages, nil
}

// -----------------------------------------------------------------------------
// Status transitions
// -----------------------------------------------------------------------------

// MarkDelivered advances one message from sent to delivered. Returns
// false without error when the message already moved past sent.
func (m *messageRepository) MarkDelivered(ctx context.Context, id primitive.ObjectID) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("_id", id).
		Eq("status", model.MessageStatusSent).
		Build()
	update := bson.M{"$set": bson.M{
		"status":     model.MessageStatusDelivered,
		"updated_at": time.Now(),
	}}

	result, err := m.mongoRepo.UpdateOne(ctx, filter, update)
	if err != nil {
		m.logger.Error("failed to mark message delivered",
			zap.String("message_id", id.Hex()),
			zap.Error(err),
		)
		return false, fmt.Errorf("mark delivered failed: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

// MarkRead bulk-advances the receiver's messages to read. Already-read
// messages match nothing and stay untouched, so the call is idempotent.
func (m *messageRepository) MarkRead(ctx context.Context, ids []primitive.ObjectID, receiverID primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		In("_id", ids).
		Eq("receiver_id", receiverID).
		In("status", []string{model.MessageStatusSent, model.MessageStatusDelivered}).
		Build()
	update := bson.M{"$set": bson.M{
		"status":     model.MessageStatusRead,
		"updated_at": time.Now(),
	}}

	result, err := m.mongoRepo.UpdateMany(ctx, filter, update)
	if err != nil {
		m.logger.Error("failed to mark messages read",
			zap.String("receiver_id", receiverID.Hex()),
			zap.Int("count", len(ids)),
			zap.Error(err),
		)
		return 0, fmt.Errorf("mark read failed: %w", err)
	}
	return result.ModifiedCount, nil
}

// MarkConversationRead is the history-fetch side effect: everything in
// the conversation addressed to the receiver becomes read.
func (m *messageRepository) MarkConversationRead(ctx context.Context, conversationID, receiverID primitive.ObjectID) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("conversation_id", conversationID).
		Eq("receiver_id", receiverID).
		In("status", []string{model.MessageStatusSent, model.MessageStatusDelivered}).
		Build()
	update := bson.M{"$set": bson.M{
		"status":     model.MessageStatusRead,
		"updated_at": time.Now(),
	}}

	result, err := m.mongoRepo.UpdateMany(ctx, filter, update)
	if err != nil {
		m.logger.Error("failed to mark conversation read",
			zap.String("conversation_id", conversationID.Hex()),
			zap.String("receiver_id", receiverID.Hex()),
			zap.Error(err),
		)
		return 0, fmt.Errorf("mark conversation read failed: %w", err)
	}
	return result.ModifiedCount, nil
}

// -----------------------------------------------------------------------------
// Reactions
// -----------------------------------------------------------------------------

// ToggleReaction flips one user's reaction on a message and returns the
// message with the updated set. The read-modify-write is serialized per
// message id so two near-simultaneous toggles cannot lose each other.
func (m *messageRepository) ToggleReaction(ctx context.Context, id, userID primitive.ObjectID, emoji string) (*model.Message, error) {
	key := id.Hex()
	m.acquireInFlight(key)
	defer m.releaseInFlight(key)

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, m.handleReadError(err, key)
	}

	updated := model.ToggleReaction(msg.Reactions, userID, emoji)
	update := bson.M{"$set": bson.M{
		"reactions":  updated,
		"updated_at": time.Now(),
	}}

	filter := db.NewFilter().Eq("_id", id).Build()
	msg, err = m.mongoRepo.FindOneAndUpdate(ctx, filter, update)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		m.logger.Error("failed to update reactions",
			zap.String("message_id", key),
			zap.String("user_id", userID.Hex()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("toggle reaction failed: %w", err)
	}
	return msg, nil
}

func (m *messageRepository) acquireInFlight(key string) {
	m.inFlightOpsLock.Lock()
	defer m.inFlightOpsLock.Unlock()

	for {
		if _, exists := m.inFlightOps[key]; !exists {
			m.inFlightOps[key] = struct{}{}
			return
		}
		m.inFlightCond.Wait()
	}
}

func (m *messageRepository) releaseInFlight(key string) {
	m.inFlightOpsLock.Lock()
	defer m.inFlightOpsLock.Unlock()
	delete(m.inFlightOps, key)
	m.inFlightCond.Broadcast()
}

// -----------------------------------------------------------------------------
// Delete
// -----------------------------------------------------------------------------

func (m *messageRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := m.mongoRepo.DeleteByID(ctx, id)
	if err != nil {
		m.logger.Error("failed to delete message",
			zap.String("message_id", id.Hex()),
			zap.Error(err),
		)
		return fmt.Errorf("delete message failed: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// -----------------------------------------------------------------------------
// Private helpers
// -----------------------------------------------------------------------------

func (m *messageRepository) handleReadError(err error, id string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("id", id))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("id", id))
		return err
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("id", id))
	return fmt.Errorf("read messages failed: %w", err)
}
