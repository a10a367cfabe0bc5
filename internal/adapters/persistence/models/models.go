package models

import (
	"time"

	"accredit-dashboard/internal/core/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ============================================================
// Sessions
// ============================================================

// Session represents sessions table.
// The upstream bearer token is stored sealed, never in clear text.
type Session struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Code        string     `gorm:"index;size:20;not null" json:"code"`
	Name        string     `gorm:"size:150" json:"name"`
	SealedToken string     `gorm:"type:text;not null" json:"-"`
	RefreshHash string     `gorm:"size:64;index" json:"-"`
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt   *time.Time `gorm:"index" json:"revoked_at"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// ToDomain converts the row to a domain session with the given clear upstream token
func (s *Session) ToDomain(upstreamToken string) *domain.Session {
	return &domain.Session{
		ID:            s.ID,
		Profile:       domain.Profile{Name: s.Name, Code: s.Code},
		UpstreamToken: upstreamToken,
		ExpiresAt:     s.ExpiresAt,
		CreatedAt:     s.CreatedAt,
		RevokedAt:     s.RevokedAt,
	}
}

// ============================================================
// Activity log
// ============================================================

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ActivityLog represents activity_logs table, one row per record mutation attempt.
// Snapshot holds the submitted record for create and update.
type ActivityLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ActorCode  string         `gorm:"index;size:20;not null" json:"actor_code"`
	ActorName  string         `gorm:"size:150" json:"actor_name"`
	Action     string         `gorm:"size:10;not null" json:"action"`
	Kind       string         `gorm:"size:30;not null;index" json:"kind"`
	RecordID   string         `gorm:"size:64" json:"record_id,omitempty"`
	RecordName string         `gorm:"size:255" json:"record_name,omitempty"`
	Snapshot   datatypes.JSON `json:"snapshot,omitempty"`
	Outcome    string         `gorm:"size:10;not null" json:"outcome"`
	Error      string         `gorm:"size:500" json:"error,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

// AutoMigrate creates or updates the service-owned tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Session{}, &ActivityLog{})
}
