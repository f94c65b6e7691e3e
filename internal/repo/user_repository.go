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

// UserRepository reads user profiles and mirrors presence to durable
// storage so offline clients can still query last-seen.
type UserRepository interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]model.UserSummary, error)
	SetPresence(ctx context.Context, id primitive.ObjectID, isOnline bool, lastSeen time.Time) error
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
	logger    *zap.Logger
}

func NewUserRepository(repo *db.Repository[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *userRepository) GetUser(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to fetch user", zap.String("user_id", id.Hex()), zap.Error(err))
		return nil, fmt.Errorf("fetch user failed: %w", err)
	}
	return user, nil
}

// Summaries fetches the embeddable view of many users in one query.
// Unknown ids are silently absent from the result map.
func (r *userRepository) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]model.UserSummary, error) {
	summaries := make(map[primitive.ObjectID]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().In("_id", ids).Build()
	users, err := r.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		r.logger.Error("failed to fetch user summaries", zap.Int("count", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("fetch user summaries failed: %w", err)
	}

	for i := range users {
		summaries[users[i].ID] = users[i].Summary()
	}
	return summaries, nil
}

func (r *userRepository) SetPresence(ctx context.Context, id primitive.ObjectID, isOnline bool, lastSeen time.Time) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"is_online": isOnline,
		"last_seen": lastSeen,
	}}

	if _, err := r.mongoRepo.UpdateByID(ctx, id, update); err != nil {
		r.logger.Error("failed to update user presence",
			zap.String("user_id", id.Hex()),
			zap.Bool("is_online", isOnline),
			zap.Error(err),
		)
		return fmt.Errorf("update user presence failed: %w", err)
	}
	return nil
}
