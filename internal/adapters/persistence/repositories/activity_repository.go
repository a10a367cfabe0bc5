package repositories

import (
	"context"
	"time"

	"accredit-dashboard/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

const defaultRecentLimit = 20

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new activity log repository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Recent returns the newest entries first, optionally for one record kind
func (r *activityRepository) Recent(ctx context.Context, kind string, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	query := r.db.WithContext(ctx).Model(&models.ActivityLog{})
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var entries []*models.ActivityLog
	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteOlderThan prunes entries created before cutoff
func (r *activityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.ActivityLog{})
	return res.RowsAffected, res.Error
}
