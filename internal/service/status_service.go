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

// CreateStatusInput carries one new status post.
type CreateStatusInput struct {
	OwnerID primitive.ObjectID
	Content string
	File    *media.File
}

// StatusService owns ephemeral status posts: creation with a 24h
// lifetime, idempotent view tracking, owner-only removal and the
// broadcast fan-out around each of those.
type StatusService interface {
	Create(ctx context.Context, in CreateStatusInput) (*model.PopulatedStatus, error)
	List(ctx context.Context) ([]model.PopulatedStatus, error)
	View(ctx context.Context, statusID, viewerID primitive.ObjectID) error
	Delete(ctx context.Context, statusID, requesterID primitive.ObjectID) error
}

type statusService struct {
	statuses repo.StatusRepository
	users    repo.UserRepository
	uploader media.Uploader
	notifier Notifier
	logger   *zap.Logger
}

func NewStatusService(
	statuses repo.StatusRepository,
	users repo.UserRepository,
	uploader media.Uploader,
	notifier Notifier,
	logger *zap.Logger,
) StatusService {
	return &statusService{
		statuses: statuses,
		users:    users,
		uploader: uploader,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *statusService) Create(ctx context.Context, in CreateStatusInput) (*model.PopulatedStatus, error) {
	var (
		contentType = model.ContentTypeText
		mediaURL    *string
	)

	switch {
	case in.File != nil:
		ct, err := media.ContentTypeOf(in.File.ContentType)
		if err != nil {
			return nil, ErrUnsupportedMedia
		}
		uploaded, err := s.uploader.Upload(ctx, *in.File)
		if err != nil {
			return nil, fmt.Errorf("upload attachment: %w", err)
		}
		contentType = ct
		mediaURL = &uploaded.URL

	case strings.TrimSpace(in.Content) == "":
		return nil, ErrInvalidMessage
	}

	now := time.Now()
	status := &model.StatusPost{
		UserID:      in.OwnerID,
		Content:     strings.TrimSpace(in.Content),
		ContentType: contentType,
		MediaURL:    mediaURL,
		Viewers:     []primitive.ObjectID{},
		CreatedAt:   now,
		ExpiresAt:   now.Add(model.StatusTTL),
	}

	id, err := s.statuses.Insert(ctx, status)
	if err != nil {
		return nil, err
	}
	status.ID = id

	populated, err := s.populate(ctx, status)
	if err != nil {
		return nil, err
	}

	s.notifier.BroadcastExcept(in.OwnerID.Hex(), event.EventNewStatus, populated)
	return populated, nil
}

func (s *statusService) List(ctx context.Context) ([]model.PopulatedStatus, error) {
	statuses, err := s.statuses.ListActive(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	idSet := make(map[primitive.ObjectID]struct{})
	for i := range statuses {
		idSet[statuses[i].UserID] = struct{}{}
		for _, v := range statuses[i].Viewers {
			idSet[v] = struct{}{}
		}
	}
	summaries, err := s.users.Summaries(ctx, idSetToSlice(idSet))
	if err != nil {
		return nil, err
	}

	populated := make([]model.PopulatedStatus, 0, len(statuses))
	for i := range statuses {
		populated = append(populated, *populateStatus(&statuses[i], summaries))
	}
	return populated, nil
}

// View records a viewer exactly once. A repeated view mutates nothing
// and sends no owner notification.
func (s *statusService) View(ctx context.Context, statusID, viewerID primitive.ObjectID) error {
	status, err := s.statuses.GetByID(ctx, statusID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	added, err := s.statuses.AddViewer(ctx, statusID, viewerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !added {
		s.logger.Debug("status already viewed",
			zap.String("status_id", statusID.Hex()),
			zap.String("viewer_id", viewerID.Hex()),
		)
		return nil
	}

	status.Viewers = append(status.Viewers, viewerID)
	populated, err := s.populate(ctx, status)
	if err != nil {
		return err
	}

	s.notifier.SendToUser(status.UserID.Hex(), event.EventStatusViewed, model.StatusViewedEvent{
		StatusID:     statusID.Hex(),
		ViewerID:     viewerID.Hex(),
		TotalViewers: len(populated.Viewers),
		Viewers:      populated.Viewers,
	})
	return nil
}

func (s *statusService) Delete(ctx context.Context, statusID, requesterID primitive.ObjectID) error {
	status, err := s.statuses.GetByID(ctx, statusID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if status.UserID != requesterID {
		return ErrForbidden
	}

	if err := s.statuses.Delete(ctx, statusID); err != nil {
		return err
	}

	s.notifier.BroadcastExcept(requesterID.Hex(), event.EventStatusDeleted, model.StatusDeletedEvent{
		StatusID: statusID.Hex(),
	})
	return nil
}

func (s *statusService) populate(ctx context.Context, status *model.StatusPost) (*model.PopulatedStatus, error) {
	idSet := make(map[primitive.ObjectID]struct{}, len(status.Viewers)+1)
	idSet[status.UserID] = struct{}{}
	for _, v := range status.Viewers {
		idSet[v] = struct{}{}
	}

	summaries, err := s.users.Summaries(ctx, idSetToSlice(idSet))
	if err != nil {
		return nil, err
	}
	return populateStatus(status, summaries), nil
}

func populateStatus(status *model.StatusPost, summaries map[primitive.ObjectID]model.UserSummary) *model.PopulatedStatus {
	return &model.PopulatedStatus{
		ID:          status.ID,
		User:        summaries[status.UserID],
		Content:     status.Content,
		ContentType: status.ContentType,
		MediaURL:    status.MediaURL,
		Viewers: Map(status.Viewers, func(id primitive.ObjectID) model.UserSummary {
			return summaries[id]
		}),
		CreatedAt: status.CreatedAt,
		ExpiresAt: status.ExpiresAt,
	}
}
