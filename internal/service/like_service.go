package service

import (
	"context"

	"mindlog/internal/middleware"
	"mindlog/internal/models"
	"mindlog/internal/notifications"
	"mindlog/internal/repository"
)

type LikeService struct {
	likes     repository.LikeRepository
	logs      repository.LogRepository
	publisher EventPublisher
}

func NewLikeService(likes repository.LikeRepository, logs repository.LogRepository, publisher EventPublisher) *LikeService {
	return &LikeService{likes: likes, logs: logs, publisher: publisher}
}

// Toggle flips userID's like on a visible log and returns the new state and
// like count.
func (s *LikeService) Toggle(ctx context.Context, userID, logID uint) (bool, int64, error) {
	if userID == 0 {
		return false, 0, models.NewUnauthorizedError("Authentication required")
	}
	if err := requireVisibleLog(ctx, s.logs, logID, userID); err != nil {
		return false, 0, err
	}

	liked, err := s.likes.Toggle(ctx, userID, logID)
	if err != nil {
		return false, 0, models.ClassifyStoreError(err)
	}

	count, err := s.likes.CountByLog(ctx, logID)
	if err != nil {
		return false, 0, models.ClassifyStoreError(err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishLogEvent(ctx, logID, notifications.EventLikeToggled, notifications.LikeToggledPayload{
			UserID:     userID,
			Liked:      liked,
			LikesCount: count,
		}); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish log event",
				"log_id", logID, "event", notifications.EventLikeToggled, "error", err)
		}
	}
	return liked, count, nil
}

func (s *LikeService) IsLiked(ctx context.Context, userID, logID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	liked, err := s.likes.IsLiked(ctx, userID, logID)
	if err != nil {
		return false, models.ClassifyStoreError(err)
	}
	return liked, nil
}
