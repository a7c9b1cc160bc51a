package repository

import (
	"context"

	"mindlog/internal/cache"
	"mindlog/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	IsLiked(ctx context.Context, userID, logID uint) (bool, error)
	Like(ctx context.Context, userID, logID uint) error
	Unlike(ctx context.Context, userID, logID uint) error
	Toggle(ctx context.Context, userID, logID uint) (bool, error)
	CountByLog(ctx context.Context, logID uint) (int64, error)
}

// likeRepository implements LikeRepository
type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) IsLiked(ctx context.Context, userID, logID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND log_id = ?", userID, logID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Like inserts the pair, doing nothing if it already exists, so concurrent
// likes cannot produce a duplicate.
func (r *likeRepository) Like(ctx context.Context, userID, logID uint) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "log_id"}},
			DoNothing: true,
		}).
		Create(&models.Like{UserID: userID, LogID: logID}).Error
	if err == nil {
		cache.InvalidateLog(ctx, logID)
	}
	return err
}

func (r *likeRepository) Unlike(ctx context.Context, userID, logID uint) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND log_id = ?", userID, logID).
		Delete(&models.Like{}).Error
	if err == nil {
		cache.InvalidateLog(ctx, logID)
	}
	return err
}

// Toggle flips the pair and reports whether it is now liked. The delete
// and the insert each report the rows they touched, so two racing toggles
// end up as one like and one unlike instead of two likes.
func (r *likeRepository) Toggle(ctx context.Context, userID, logID uint) (bool, error) {
	db := r.db.WithContext(ctx)
	defer cache.InvalidateLog(ctx, logID)

	removed := db.Where("user_id = ? AND log_id = ?", userID, logID).Delete(&models.Like{})
	if removed.Error != nil {
		return false, removed.Error
	}
	if removed.RowsAffected > 0 {
		return false, nil
	}

	inserted := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "log_id"}},
		DoNothing: true,
	}).Create(&models.Like{UserID: userID, LogID: logID})
	if inserted.Error != nil {
		return false, inserted.Error
	}
	if inserted.RowsAffected > 0 {
		return true, nil
	}

	// A concurrent toggle inserted the like first; this one undoes it.
	if err := db.Where("user_id = ? AND log_id = ?", userID, logID).Delete(&models.Like{}).Error; err != nil {
		return false, err
	}
	return false, nil
}

func (r *likeRepository) CountByLog(ctx context.Context, logID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("log_id = ?", logID).
		Count(&count).Error
	return count, err
}
