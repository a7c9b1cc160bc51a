package repository

import (
	"context"

	"mindlog/internal/cache"
	"mindlog/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByLog(ctx context.Context, logID uint, limit, offset int) ([]*models.Comment, error)
	CountByLog(ctx context.Context, logID uint) (int64, error)
}

// commentRepository implements CommentRepository
type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return err
	}
	cache.InvalidateLog(ctx, comment.LogID)
	return nil
}

// ListByLog returns a log's comments, newest first.
func (r *commentRepository) ListByLog(ctx context.Context, logID uint, limit, offset int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("log_id = ?", logID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) CountByLog(ctx context.Context, logID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("log_id = ?", logID).
		Count(&count).Error
	return count, err
}
