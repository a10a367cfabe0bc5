package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"accredit-dashboard/internal/adapters/persistence/models"
	"accredit-dashboard/internal/config"
	"accredit-dashboard/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := config.OpenDatabase(sqlite.Open(dsn), false)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newSession(code, hash string, expiresIn time.Duration) *models.Session {
	return &models.Session{
		ID:          uuid.NewString(),
		Code:        code,
		Name:        "Juan Dela Cruz",
		SealedToken: "sealed",
		RefreshHash: hash,
		ExpiresAt:   time.Now().Add(expiresIn),
	}
}

func TestSessionRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))

	s := newSession("1001", "h1", time.Hour)
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "1001", got.Code)
	assert.Equal(t, "sealed", got.SealedToken)
	assert.False(t, got.IsRevoked())

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepository_RotateRefreshHash(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))

	s := newSession("1001", "h1", time.Hour)
	require.NoError(t, repo.Create(ctx, s))

	ok, err := repo.RotateRefreshHash(ctx, s.ID, "h1", "h2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.RotateRefreshHash(ctx, s.ID, "h1", "h3")
	require.NoError(t, err)
	assert.False(t, ok, "a used refresh hash cannot rotate again")

	require.NoError(t, repo.Revoke(ctx, s.ID))
	ok, err = repo.RotateRefreshHash(ctx, s.ID, "h2", "h4")
	require.NoError(t, err)
	assert.False(t, ok, "revoked sessions cannot rotate")
}

func TestSessionRepository_RevokeAllAndCount(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, newSession("1001", "a", time.Hour)))
	require.NoError(t, repo.Create(ctx, newSession("1001", "b", time.Hour)))
	require.NoError(t, repo.Create(ctx, newSession("2002", "c", time.Hour)))

	count, err := repo.CountActiveByCode(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	n, err := repo.RevokeAllByCode(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err = repo.CountActiveByCode(ctx, "1001")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.CountActiveByCode(ctx, "2002")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))

	live := newSession("1001", "a", time.Hour)
	expired := newSession("1001", "b", -time.Hour)
	revoked := newSession("1001", "c", time.Hour)
	for _, s := range []*models.Session{live, expired, revoked} {
		require.NoError(t, repo.Create(ctx, s))
	}
	require.NoError(t, repo.Revoke(ctx, revoked.ID))

	n, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.GetByID(ctx, live.ID)
	assert.NoError(t, err)
	_, err = repo.GetByID(ctx, expired.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestActivityRepository_RecentAndPrune(t *testing.T) {
	ctx := context.Background()
	repo := NewActivityRepository(newTestDB(t))

	base := time.Now().Add(-10 * 24 * time.Hour)
	entries := []*models.ActivityLog{
		{ActorCode: "1001", Action: models.ActionCreate, Kind: "facility", Outcome: models.OutcomeSuccess, CreatedAt: base},
		{ActorCode: "1001", Action: models.ActionUpdate, Kind: "facility", RecordID: "7", Outcome: models.OutcomeFailure, Error: "boom", CreatedAt: base.Add(24 * time.Hour)},
		{ActorCode: "1001", Action: models.ActionDelete, Kind: "health-professional", RecordID: "3", Outcome: models.OutcomeSuccess, CreatedAt: base.Add(9 * 24 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Create(ctx, e))
	}

	recent, err := repo.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, models.ActionDelete, recent[0].Action, "newest first")

	recent, err = repo.Recent(ctx, "facility", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "7", recent[0].RecordID)

	n, err := repo.DeleteOlderThan(ctx, base.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recent, err = repo.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
