package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accredit-dashboard/internal/adapters/persistence/models"
	"accredit-dashboard/internal/adapters/persistence/repositories"
	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/pkg/logger"
	"accredit-dashboard/internal/pkg/secret"
)

// SessionService keeps the server-side sign-in context: who is signed in and
// the record store token used on their behalf.
type SessionService struct {
	repo   repositories.SessionRepository
	sealer *secret.Sealer
	ttl    time.Duration
	log    *logger.Logger
}

// NewSessionService creates a new session service. ttl bounds the lifetime of a session.
func NewSessionService(repo repositories.SessionRepository, sealer *secret.Sealer, ttl time.Duration, log *logger.Logger) *SessionService {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionService{repo: repo, sealer: sealer, ttl: ttl, log: log}
}

// Save stores a new session with the given ID
func (s *SessionService) Save(ctx context.Context, id, upstreamToken string, profile domain.Profile, refreshHash string) (*domain.Session, error) {
	sealed, err := s.sealer.Seal(upstreamToken)
	if err != nil {
		return nil, fmt.Errorf("seal upstream token: %w", err)
	}

	row := &models.Session{
		ID:          id,
		Code:        profile.Code,
		Name:        profile.Name,
		SealedToken: sealed,
		RefreshHash: refreshHash,
		ExpiresAt:   time.Now().Add(s.ttl),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}

	s.log.Info("session created", "session_id", id, "code", profile.Code)
	return row.ToDomain(upstreamToken), nil
}

// Load returns a live session. Revoked, expired and unknown sessions are errors.
func (s *SessionService) Load(ctx context.Context, id string) (*domain.Session, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.IsRevoked() {
		return nil, domain.ErrSessionRevoked
	}
	if row.IsExpired() {
		return nil, domain.ErrSessionExpired
	}

	token, err := s.sealer.Open(row.SealedToken)
	if err != nil {
		// the session secret changed since this row was written
		s.log.Warn("session token cannot be opened", "session_id", id)
		return nil, domain.ErrSessionRevoked
	}
	return row.ToDomain(token), nil
}

// Rotate replaces the refresh hash. A stale oldHash revokes the session, since
// it means a refresh token was presented twice.
func (s *SessionService) Rotate(ctx context.Context, id, oldHash, newHash string) error {
	ok, err := s.repo.RotateRefreshHash(ctx, id, oldHash, newHash)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if _, err := s.Load(ctx, id); err != nil {
		return err
	}
	s.log.Warn("refresh token reuse detected, revoking session", "session_id", id)
	if err := s.repo.Revoke(ctx, id); err != nil {
		return err
	}
	return domain.ErrSessionRevoked
}

// Clear revokes one session
func (s *SessionService) Clear(ctx context.Context, id string) error {
	if err := s.repo.Revoke(ctx, id); err != nil {
		return err
	}
	s.log.Info("session cleared", "session_id", id)
	return nil
}

// ClearAll revokes every session of an employee
func (s *SessionService) ClearAll(ctx context.Context, code string) (int64, error) {
	n, err := s.repo.RevokeAllByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	s.log.Info("all sessions cleared", "code", code, "count", n)
	return n, nil
}

// ActiveCount counts live sessions of an employee
func (s *SessionService) ActiveCount(ctx context.Context, code string) (int64, error) {
	return s.repo.CountActiveByCode(ctx, code)
}

// PurgeExpired deletes dead sessions
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired sessions purged", "count", n)
	}
	return n, nil
}

// IsSessionError reports errors that mean the caller must sign in again
func IsSessionError(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound) ||
		errors.Is(err, domain.ErrSessionExpired) ||
		errors.Is(err, domain.ErrSessionRevoked)
}
