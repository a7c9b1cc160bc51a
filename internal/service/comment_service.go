package service

import (
	"context"
	"strings"

	"mindlog/internal/middleware"
	"mindlog/internal/models"
	"mindlog/internal/notifications"
	"mindlog/internal/repository"
	"mindlog/internal/validation"
)

// EventPublisher publishes live log events. *notifications.Notifier
// satisfies it.
type EventPublisher interface {
	PublishLogEvent(ctx context.Context, logID uint, eventType string, payload any) error
}

type CreateCommentInput struct {
	LogID      uint
	UserID     uint
	AuthorName string
	Category   models.CommentCategory
	Content    string
}

type CommentService struct {
	comments  repository.CommentRepository
	logs      repository.LogRepository
	publisher EventPublisher
}

func NewCommentService(
	comments repository.CommentRepository,
	logs repository.LogRepository,
	publisher EventPublisher,
) *CommentService {
	return &CommentService{comments: comments, logs: logs, publisher: publisher}
}

// Create stores a comment on a log visible to the author and announces the
// new comment count.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validation.ValidateCommentContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateCommentCategory(in.Category); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.requireVisible(ctx, in.LogID, in.UserID); err != nil {
		return nil, err
	}

	author := strings.TrimSpace(in.AuthorName)
	if author == "" {
		author = models.AnonymousAuthorName
	}
	comment := &models.Comment{
		LogID:      in.LogID,
		UserID:     in.UserID,
		AuthorName: author,
		Category:   in.Category,
		Content:    strings.TrimSpace(in.Content),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, models.ClassifyStoreError(err)
	}

	count, err := s.comments.CountByLog(ctx, in.LogID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to count comments", "log_id", in.LogID, "error", err)
		return comment, nil
	}
	s.publish(ctx, in.LogID, notifications.EventCommentCreated, notifications.CommentCreatedPayload{
		CommentID:     comment.ID,
		AuthorName:    comment.AuthorName,
		Category:      string(comment.Category),
		CommentsCount: count,
	})
	return comment, nil
}

// List returns the comments of a visible log, newest first.
func (s *CommentService) List(ctx context.Context, logID, viewerID uint, limit, offset int) ([]*models.Comment, error) {
	if err := s.requireVisible(ctx, logID, viewerID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByLog(ctx, logID, limit, offset)
	if err != nil {
		return nil, models.ClassifyStoreError(err)
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return comments, nil
}

func (s *CommentService) Count(ctx context.Context, logID uint) (int64, error) {
	count, err := s.comments.CountByLog(ctx, logID)
	if err != nil {
		return 0, models.ClassifyStoreError(err)
	}
	return count, nil
}

func (s *CommentService) requireVisible(ctx context.Context, logID, viewerID uint) error {
	return requireVisibleLog(ctx, s.logs, logID, viewerID)
}

func (s *CommentService) publish(ctx context.Context, logID uint, eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLogEvent(ctx, logID, eventType, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish log event",
			"log_id", logID, "event", eventType, "error", err)
	}
}

func requireVisibleLog(ctx context.Context, logs repository.LogRepository, logID, viewerID uint) error {
	log, err := logs.GetByID(ctx, logID, viewerID)
	if err != nil {
		return mapLogError(err, logID)
	}
	if !log.VisibleTo(viewerID) {
		return models.NewNotFoundError("Log", logID)
	}
	return nil
}
