package repositories

import (
	"context"
	"errors"
	"time"

	"accredit-dashboard/internal/adapters/persistence/models"
	"accredit-dashboard/internal/core/domain"

	"gorm.io/gorm"
)

// sessionRepository implements SessionRepository interface
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Create creates a new session
func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetByID gets a session by ID, revoked or not
func (r *sessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// RotateRefreshHash swaps the refresh hash only if oldHash is still current.
// It reports false when the session is revoked or the old hash was already used.
func (r *sessionRepository) RotateRefreshHash(ctx context.Context, id, oldHash, newHash string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", id).
		Where("refresh_hash = ?", oldHash).
		Where("revoked_at IS NULL").
		Update("refresh_hash", newHash)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Revoke revokes a session by ID
func (r *sessionRepository) Revoke(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", id).
		Where("revoked_at IS NULL").
		Update("revoked_at", &now).Error
}

// RevokeAllByCode revokes every active session of an employee
func (r *sessionRepository) RevokeAllByCode(ctx context.Context, code string) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("code = ?", code).
		Where("revoked_at IS NULL").
		Update("revoked_at", &now)
	return res.RowsAffected, res.Error
}

// DeleteExpired deletes expired and revoked sessions (cleanup job)
func (r *sessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", time.Now()).
		Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// CountActiveByCode counts live sessions for an employee
func (r *sessionRepository) CountActiveByCode(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("code = ?", code).
		Where("revoked_at IS NULL").
		Where("expires_at > ?", time.Now()).
		Count(&count).Error
	return count, err
}
