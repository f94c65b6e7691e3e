package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nexchat/internal/db"
	"nexchat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ConversationRepository owns the conversation collection. A pair of
// users maps to at most one conversation; participant ids are stored
// sorted so lookups are order-independent.
type ConversationRepository interface {
	Create(ctx context.Context, a, b primitive.ObjectID) (*model.Conversation, error)
	FindByParticipants(ctx context.Context, a, b primitive.ObjectID) (*model.Conversation, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Conversation, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]model.Conversation, error)
	RecordMessage(ctx context.Context, id primitive.ObjectID, messageID *primitive.ObjectID) error
	ResetUnread(ctx context.Context, id primitive.ObjectID) error
}

type conversationRepository struct {
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

func NewConversationRepository(repo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// sortParticipants normalizes an unordered pair to its canonical order.
func sortParticipants(a, b primitive.ObjectID) []primitive.ObjectID {
	if b.Hex() < a.Hex() {
		a, b = b, a
	}
	return []primitive.ObjectID{a, b}
}

func (r *conversationRepository) Create(ctx context.Context, a, b primitive.ObjectID) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now()
	conversation := model.Conversation{
		Participants: sortParticipants(a, b),
		UnreadCount:  0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	result, err := r.mongoRepo.Create(ctx, conversation)
	if err != nil {
		r.logger.Error("failed to create conversation", zap.Error(err))
		return nil, fmt.Errorf("create conversation failed: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		conversation.ID = oid
	}

	r.logger.Info("conversation created",
		zap.String("conversation_id", conversation.ID.Hex()),
	)
	return &conversation, nil
}

func (r *conversationRepository) FindByParticipants(ctx context.Context, a, b primitive.ObjectID) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participants", sortParticipants(a, b)).Build()
	conversation, err := r.mongoRepo.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to find conversation by participants", zap.Error(err))
		return nil, fmt.Errorf("find conversation failed: %w", err)
	}
	return conversation, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conversation, err := r.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to fetch conversation",
			zap.String("conversation_id", id.Hex()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch conversation failed: %w", err)
	}
	return conversation, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participants", userID).Build()
	conversations, err := r.mongoRepo.FindAll(ctx, filter, db.Sorted("updated_at", true))
	if err != nil {
		r.logger.Error("failed to list conversations",
			zap.String("user_id", userID.Hex()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}

	r.logger.Debug("conversations retrieved",
		zap.String("user_id", userID.Hex()),
		zap.Int("count", len(conversations)),
	)
	return conversations, nil
}

// RecordMessage advances the conversation after a new message: bumps the
// unread counter and, when messageID is set, the last-message pointer.
func (r *conversationRepository) RecordMessage(ctx context.Context, id primitive.ObjectID, messageID *primitive.ObjectID) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now()}
	if messageID != nil {
		set["last_message"] = *messageID
	}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{"unread_count": 1},
	}

	if _, err := r.mongoRepo.UpdateByID(ctx, id, update); err != nil {
		r.logger.Error("failed to record message on conversation",
			zap.String("conversation_id", id.Hex()),
			zap.Error(err),
		)
		return fmt.Errorf("record message failed: %w", err)
	}
	return nil
}

func (r *conversationRepository) ResetUnread(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"unread_count": 0}}
	if _, err := r.mongoRepo.UpdateByID(ctx, id, update); err != nil {
		r.logger.Error("failed to reset unread count",
			zap.String("conversation_id", id.Hex()),
			zap.Error(err),
		)
		return fmt.Errorf("reset unread failed: %w", err)
	}
	return nil
}
