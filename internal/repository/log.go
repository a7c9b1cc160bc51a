// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"mindlog/internal/cache"
	"mindlog/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LogRepository defines the interface for log data operations.
type LogRepository interface {
	Create(ctx context.Context, log *models.Log) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Log, error)
	ListPublic(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Log, error)
	ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Log, error)
	ListLiked(ctx context.Context, userID uint, limit, offset int) ([]*models.Log, error)
	ListVisible(ctx context.Context, viewerID uint, limit int) ([]*models.Log, error)
	SearchDirect(ctx context.Context, query string, viewerID uint, limit int) ([]*models.Log, error)
	RelatedCandidates(ctx context.Context, userID, excludeID uint) ([]models.LogTitle, error)
	TitlesByID(ctx context.Context, viewerID uint, ids []uint) (map[uint]string, error)
	ListWithRelations(ctx context.Context, afterID uint, limit int) ([]*models.Log, error)
	UpdateRelatedTitles(ctx context.Context, id uint, titles []string) error
	ImageInUse(ctx context.Context, url string) (bool, error)
	Update(ctx context.Context, log *models.Log) error
	Delete(ctx context.Context, id uint) error
}

// logRepository implements LogRepository
type logRepository struct {
	db *gorm.DB
}

// NewLogRepository creates a new log repository
func NewLogRepository(db *gorm.DB) LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Create(ctx context.Context, log *models.Log) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(log).Error
}

// GetByID loads a log with its counters. Anonymous reads go through the
// Redis cache; visibility is the caller's concern.
func (r *logRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Log, error) {
	var log models.Log
	load := func() error {
		return r.withDetails(r.db.WithContext(ctx), viewerID).
			Preload("Owner", selectOwner).
			First(&log, id).Error
	}

	var err error
	if viewerID == 0 {
		err = cache.Aside(ctx, cache.LogKey(id), &log, cache.LogTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *logRepository) ListPublic(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Log, error) {
	var logs []*models.Log
	err := r.withDetails(r.db.WithContext(ctx), viewerID).
		Preload("Owner", selectOwner).
		Where("logs.is_public = ?", true).
		Order("logs.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	return logs, err
}

func (r *logRepository) ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Log, error) {
	var logs []*models.Log
	err := r.withDetails(r.db.WithContext(ctx), ownerID).
		Preload("Owner", selectOwner).
		Where("logs.owner_id = ?", ownerID).
		Order("logs.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	return logs, err
}

// ListLiked returns logs userID liked, most recently liked first, hiding
// private logs of other owners.
func (r *logRepository) ListLiked(ctx context.Context, userID uint, limit, offset int) ([]*models.Log, error) {
	var logs []*models.Log
	err := r.withDetails(r.db.WithContext(ctx), userID).
		Preload("Owner", selectOwner).
		Joins("JOIN likes ON likes.log_id = logs.id AND likes.user_id = ?", userID).
		Where("logs.is_public = ? OR logs.owner_id = ?", true, userID).
		Order("likes.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	return logs, err
}

// ListVisible returns up to limit logs viewerID may read, newest first.
func (r *logRepository) ListVisible(ctx context.Context, viewerID uint, limit int) ([]*models.Log, error) {
	var logs []*models.Log
	err := r.withDetails(r.db.WithContext(ctx), viewerID).
		Preload("Owner", selectOwner).
		Scopes(visibleTo(viewerID)).
		Order("logs.created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// SearchDirect matches query against title and description, case-insensitively.
func (r *logRepository) SearchDirect(ctx context.Context, query string, viewerID uint, limit int) ([]*models.Log, error) {
	var logs []*models.Log
	like := "%" + escapeLike(strings.ToLower(query)) + "%"
	err := r.withDetails(r.db.WithContext(ctx), viewerID).
		Preload("Owner", selectOwner).
		Scopes(visibleTo(viewerID)).
		Where("(LOWER(logs.title) LIKE ? ESCAPE '\\' OR LOWER(logs.description) LIKE ? ESCAPE '\\')", like, like).
		Order("logs.created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *logRepository) RelatedCandidates(ctx context.Context, userID, excludeID uint) ([]models.LogTitle, error) {
	var out []models.LogTitle
	q := r.db.WithContext(ctx).
		Model(&models.Log{}).
		Select("id", "title").
		Scopes(visibleTo(userID))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Order("title ASC").Find(&out).Error
	return out, err
}

// TitlesByID resolves titles in one query. Missing, deleted and ids hidden
// from viewerID are absent from the result.
func (r *logRepository) TitlesByID(ctx context.Context, viewerID uint, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.LogTitle
	if err := r.db.WithContext(ctx).
		Model(&models.Log{}).
		Select("id", "title").
		Scopes(visibleTo(viewerID)).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Title
	}
	return out, nil
}

// ListWithRelations pages through logs that carry related ids, by
// ascending id after afterID.
func (r *logRepository) ListWithRelations(ctx context.Context, afterID uint, limit int) ([]*models.Log, error) {
	var logs []*models.Log
	err := r.db.WithContext(ctx).
		Select("id", "owner_id", "related_log_ids", "related_log_titles", "updated_at").
		Where("id > ?", afterID).
		Where("related_log_ids IS NOT NULL AND related_log_ids NOT IN ('', '[]', 'null')").
		Order("id ASC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *logRepository) UpdateRelatedTitles(ctx context.Context, id uint, titles []string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Log{ID: id}).
		Select("related_log_titles", "updated_at").
		Updates(&models.Log{RelatedLogTitles: titles, UpdatedAt: time.Now()}).Error
	if err == nil {
		cache.InvalidateLog(ctx, id)
	}
	return err
}

func (r *logRepository) Update(ctx context.Context, log *models.Log) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(log).Error; err != nil {
		return err
	}
	cache.InvalidateLog(ctx, log.ID)
	return nil
}

// Delete removes the log together with its comments and likes.
func (r *logRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("log_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("log_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Log{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err == nil {
		cache.InvalidateLog(ctx, id)
	}
	return err
}

// withDetails adds comment and like counts and the viewer's liked flag.
func (r *logRepository) withDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "logs.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.log_id = logs.id) AS comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.log_id = logs.id) AS likes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.log_id = logs.id AND likes.user_id = ?) AS liked", viewerID)
	}
	return db.Select(selectQuery + ", false AS liked")
}

func visibleTo(viewerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if viewerID == 0 {
			return db.Where("logs.is_public = ?", true)
		}
		return db.Where("(logs.is_public = ? OR logs.owner_id = ?)", true, viewerID)
	}
}

func selectOwner(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username")
}

// ImageInUse reports whether any live log lists url among its images. The
// match runs against the JSON the images column is serialized to.
func (r *logRepository) ImageInUse(ctx context.Context, url string) (bool, error) {
	encoded, err := json.Marshal(url)
	if err != nil {
		return false, err
	}
	pattern := "%" + escapeLike(`"url":`+string(encoded)) + "%"
	var count int64
	err = r.db.WithContext(ctx).
		Model(&models.Log{}).
		Where("images LIKE ? ESCAPE '\\'", pattern).
		Count(&count).Error
	return count > 0, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
