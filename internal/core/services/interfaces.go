package services

import (
	"context"
	"encoding/json"

	"accredit-dashboard/internal/adapters/recordstore"
	"accredit-dashboard/internal/core/domain"
)

// Note: the record store client lives in internal/adapters/recordstore
// Note: the Redis record cache lives in internal/adapters/cache

// RecordStore defines the accreditation record store operations the services use
type RecordStore interface {
	Login(ctx context.Context, code, password string) (*recordstore.LoginResult, error)
	Register(ctx context.Context, code, name, password string) (json.RawMessage, error)
	ListFacilities(ctx context.Context, token string) ([]domain.Facility, error)
	ListProfessionals(ctx context.Context, token string) ([]domain.Professional, error)
	Create(ctx context.Context, token string, record domain.Accreditable) error
	Update(ctx context.Context, token string, id domain.RecordID, record domain.Accreditable) error
	Delete(ctx context.Context, token string, kind domain.RecordKind, id domain.RecordID) error
	Ping(ctx context.Context) error
}

// RecordCache defines the optional short-lived cache of record collections.
// Entries are scoped to the upstream token that fetched them.
type RecordCache interface {
	Load(ctx context.Context, kind domain.RecordKind, token string, dest interface{}) (bool, error)
	Store(ctx context.Context, kind domain.RecordKind, token string, value interface{}) error
	Invalidate(ctx context.Context, kind domain.RecordKind) error
}

// ListFilter narrows a record collection for tables and exports
type ListFilter struct {
	Search string
	Page   int
	Limit  int
}
