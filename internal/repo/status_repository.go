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

// StatusRepository owns the status post collection. Expiry is a read
// filter, not a delete: purging stale documents is a housekeeping job
// outside this process.
type StatusRepository interface {
	Insert(ctx context.Context, status *model.StatusPost) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.StatusPost, error)
	ListActive(ctx context.Context, now time.Time) ([]model.StatusPost, error)
	AddViewer(ctx context.Context, id, viewerID primitive.ObjectID) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type statusRepository struct {
	mongoRepo *db.Repository[model.StatusPost]
	logger    *zap.Logger
}

func NewStatusRepository(repo *db.Repository[model.StatusPost], logger *zap.Logger) StatusRepository {
	return &statusRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *statusRepository) Insert(ctx context.Context, status *model.StatusPost) (primitive.ObjectID, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.Create(ctx, *status)
	if err != nil {
		r.logger.Error("failed to insert status", zap.Error(err))
		return primitive.NilObjectID, fmt.Errorf("insert status failed: %w", err)
	}

	insertedID := primitive.NilObjectID
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		insertedID = oid
	}

	r.logger.Info("status created",
		zap.String("status_id", insertedID.Hex()),
		zap.String("owner_id", status.UserID.Hex()),
	)
	return insertedID, nil
}

func (r *statusRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.StatusPost, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	status, err := r.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to fetch status", zap.String("status_id", id.Hex()), zap.Error(err))
		return nil, fmt.Errorf("fetch status failed: %w", err)
	}
	return status, nil
}

func (r *statusRepository) ListActive(ctx context.Context, now time.Time) ([]model.StatusPost, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Gt("expires_at", now).Build()
	statuses, err := r.mongoRepo.FindAll(ctx, filter, db.Sorted("created_at", true))
	if err != nil {
		r.logger.Error("failed to list statuses", zap.Error(err))
		return nil, fmt.Errorf("list statuses failed: %w", err)
	}
	return statuses, nil
}

// AddViewer records a view exactly once via $addToSet. Returns false
// when the viewer was already present (no document change).
func (r *statusRepository) AddViewer(ctx context.Context, id, viewerID primitive.ObjectID) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	update := bson.M{"$addToSet": bson.M{"viewers": viewerID}}
	result, err := r.mongoRepo.UpdateByID(ctx, id, update)
	if err != nil {
		r.logger.Error("failed to add status viewer",
			zap.String("status_id", id.Hex()),
			zap.String("viewer_id", viewerID.Hex()),
			zap.Error(err),
		)
		return false, fmt.Errorf("add viewer failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return result.ModifiedCount > 0, nil
}

func (r *statusRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.DeleteByID(ctx, id)
	if err != nil {
		r.logger.Error("failed to delete status", zap.String("status_id", id.Hex()), zap.Error(err))
		return fmt.Errorf("delete status failed: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
