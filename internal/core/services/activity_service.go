package services

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"accredit-dashboard/internal/adapters/persistence/models"
	"accredit-dashboard/internal/adapters/persistence/repositories"
	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/pkg/logger"

	"gorm.io/datatypes"
)

const maxActivityLimit = 100

// ActivityService writes and reads the audit trail of record mutations
type ActivityService struct {
	repo repositories.ActivityRepository
	log  *logger.Logger
}

func NewActivityService(repo repositories.ActivityRepository, log *logger.Logger) *ActivityService {
	if log == nil {
		log = logger.Nop()
	}
	return &ActivityService{repo: repo, log: log}
}

// Record stores one mutation attempt. record may be nil (delete).
// Audit failures are logged, never returned.
func (s *ActivityService) Record(ctx context.Context, actor domain.Profile, action string, kind domain.RecordKind, id domain.RecordID, record domain.Accreditable, opErr error) {
	entry := &models.ActivityLog{
		ActorCode: actor.Code,
		ActorName: actor.Name,
		Action:    action,
		Kind:      string(kind),
		RecordID:  id.String(),
		Outcome:   models.OutcomeSuccess,
	}
	if record != nil {
		entry.RecordName = truncate(record.Base().Name, 255)
		if raw, err := json.Marshal(record); err == nil {
			entry.Snapshot = datatypes.JSON(raw)
		}
	}
	if opErr != nil {
		entry.Outcome = models.OutcomeFailure
		entry.Error = truncate(opErr.Error(), 500)
	}

	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn("activity log write failed", "action", action, "kind", kind, "error", err)
	}
}

// Recent returns the latest entries, newest first
func (s *ActivityService) Recent(ctx context.Context, kind string, limit int) ([]*models.ActivityLog, error) {
	if kind != "" {
		k, err := domain.ParseRecordKind(kind)
		if err != nil {
			return nil, err
		}
		kind = string(k)
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	return s.repo.Recent(ctx, kind, limit)
}

// Prune deletes entries older than retentionDays
func (s *ActivityService) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("activity log pruned", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// truncate keeps at most max characters, matching varchar length semantics
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
