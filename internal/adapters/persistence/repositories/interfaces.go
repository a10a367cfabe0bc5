package repositories

import (
	"context"
	"time"

	"accredit-dashboard/internal/adapters/persistence/models"
)

// SessionRepository defines session repository interface
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	RotateRefreshHash(ctx context.Context, id, oldHash, newHash string) (bool, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllByCode(ctx context.Context, code string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
	CountActiveByCode(ctx context.Context, code string) (int64, error)
}

// ActivityRepository defines activity log repository interface
type ActivityRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	Recent(ctx context.Context, kind string, limit int) ([]*models.ActivityLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
