package services

import (
	"context"
	"fmt"
	"time"

	"accredit-dashboard/internal/config"
	"accredit-dashboard/internal/pkg/logger"

	"github.com/robfig/cron/v3"
)

const cronJobTimeout = 2 * time.Minute

// CronService runs housekeeping jobs on a schedule
type CronService struct {
	cron     *cron.Cron
	sessions *SessionService
	activity *ActivityService
	cfg      config.CronConfig
	log      *logger.Logger
}

// NewCronService registers the session purge and activity prune jobs
func NewCronService(sessions *SessionService, activity *ActivityService, cfg config.CronConfig, loc *time.Location, log *logger.Logger) (*CronService, error) {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &CronService{
		cron:     cron.New(cron.WithLocation(loc)),
		sessions: sessions,
		activity: activity,
		cfg:      cfg,
		log:      log,
	}

	if _, err := s.cron.AddFunc(cfg.SessionPurgeSchedule, s.PurgeSessions); err != nil {
		return nil, fmt.Errorf("invalid SESSION_PURGE_SCHEDULE %q: %w", cfg.SessionPurgeSchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.ActivityPruneSchedule, s.PruneActivity); err != nil {
		return nil, fmt.Errorf("invalid ACTIVITY_PRUNE_SCHEDULE %q: %w", cfg.ActivityPruneSchedule, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine
func (s *CronService) Start() {
	s.cron.Start()
	s.log.Info("cron service started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("cron service stopped")
}

// PurgeSessions deletes expired and revoked sessions
func (s *CronService) PurgeSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	if _, err := s.sessions.PurgeExpired(ctx); err != nil {
		s.log.Error("session purge failed", "error", err)
	}
}

// PruneActivity deletes activity older than the retention window
func (s *CronService) PruneActivity() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	if _, err := s.activity.Prune(ctx, s.cfg.ActivityRetentionDays); err != nil {
		s.log.Error("activity prune failed", "error", err)
	}
}
