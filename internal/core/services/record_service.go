package services

import (
	"context"
	"strings"

	"accredit-dashboard/internal/adapters/persistence/models"
	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/pkg/logger"
	"accredit-dashboard/internal/pkg/pagination"
)

// RecordList is one page of a record collection
type RecordList struct {
	Kind  domain.RecordKind     `json:"kind"`
	Items []domain.Accreditable `json:"items"`
	Meta  *pagination.Meta      `json:"meta"`
}

// RecordService reads and writes facilities and professionals in the record
// store on behalf of a signed-in employee.
type RecordService struct {
	store    RecordStore
	cache    RecordCache
	activity *ActivityService
	log      *logger.Logger
}

// NewRecordService creates a new record service. cache may be nil.
func NewRecordService(store RecordStore, cache RecordCache, activity *ActivityService, log *logger.Logger) *RecordService {
	if log == nil {
		log = logger.Nop()
	}
	return &RecordService{store: store, cache: cache, activity: activity, log: log}
}

// Fetch returns the whole collection of kind
func (s *RecordService) Fetch(ctx context.Context, session *domain.Session, kind domain.RecordKind) ([]domain.Accreditable, error) {
	switch kind {
	case domain.FacilityKind:
		items, err := fetchCached(ctx, s, session, kind, s.store.ListFacilities)
		return asAccreditable(items), err
	case domain.ProfessionalKind:
		items, err := fetchCached(ctx, s, session, kind, s.store.ListProfessionals)
		return asAccreditable(items), err
	default:
		return nil, domain.NewValidationError("kind", "Unknown record kind")
	}
}

// List returns the collection of kind narrowed by a case-insensitive name search
func (s *RecordService) List(ctx context.Context, session *domain.Session, kind domain.RecordKind, filter ListFilter) (*RecordList, error) {
	items, err := s.Fetch(ctx, session, kind)
	if err != nil {
		return nil, err
	}

	filtered := FilterByName(items, filter.Search)
	params := pagination.NewParams(filter.Page, filter.Limit)

	return &RecordList{
		Kind:  kind,
		Items: pagination.Slice(filtered, params),
		Meta:  pagination.GetMeta(params, len(filtered)),
	}, nil
}

// Create adds a record and returns the refreshed collection
func (s *RecordService) Create(ctx context.Context, session *domain.Session, record domain.Accreditable) (*RecordList, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	err := s.store.Create(ctx, session.UpstreamToken, record)
	s.audit(ctx, session, models.ActionCreate, record.Kind(), "", record, err)
	if err != nil {
		return nil, err
	}
	return s.refetch(ctx, session, record.Kind())
}

// Update replaces the record with id and returns the refreshed collection
func (s *RecordService) Update(ctx context.Context, session *domain.Session, id domain.RecordID, record domain.Accreditable) (*RecordList, error) {
	if strings.TrimSpace(id.String()) == "" {
		return nil, domain.NewValidationError("id", "Record id is required")
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	err := s.store.Update(ctx, session.UpstreamToken, id, record)
	s.audit(ctx, session, models.ActionUpdate, record.Kind(), id, record, err)
	if err != nil {
		return nil, err
	}
	return s.refetch(ctx, session, record.Kind())
}

// Delete removes the record with id and returns the refreshed collection
func (s *RecordService) Delete(ctx context.Context, session *domain.Session, kind domain.RecordKind, id domain.RecordID) (*RecordList, error) {
	if strings.TrimSpace(id.String()) == "" {
		return nil, domain.NewValidationError("id", "Record id is required")
	}

	err := s.store.Delete(ctx, session.UpstreamToken, kind, id)
	s.audit(ctx, session, models.ActionDelete, kind, id, nil, err)
	if err != nil {
		return nil, err
	}
	return s.refetch(ctx, session, kind)
}

func (s *RecordService) refetch(ctx context.Context, session *domain.Session, kind domain.RecordKind) (*RecordList, error) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, kind); err != nil {
			s.log.Warn("record cache invalidate failed", "kind", kind, "error", err)
		}
	}
	return s.List(ctx, session, kind, ListFilter{})
}

func (s *RecordService) audit(ctx context.Context, session *domain.Session, action string, kind domain.RecordKind, id domain.RecordID, record domain.Accreditable, err error) {
	if err != nil {
		s.log.Error("record mutation failed", "action", action, "kind", kind, "id", id.String(), "error", err)
	}
	if s.activity != nil {
		s.activity.Record(ctx, session.Profile, action, kind, id, record, err)
	}
}

// fetchCached serves a collection from the cache when possible and fills it on a miss.
// Cache errors degrade to a direct fetch.
func fetchCached[R domain.Accreditable](
	ctx context.Context,
	s *RecordService,
	session *domain.Session,
	kind domain.RecordKind,
	fetch func(ctx context.Context, token string) ([]R, error),
) ([]R, error) {
	if s.cache != nil {
		var cached []R
		hit, err := s.cache.Load(ctx, kind, session.UpstreamToken, &cached)
		if err != nil {
			s.log.Warn("record cache read failed", "kind", kind, "error", err)
		}
		if hit {
			return cached, nil
		}
	}

	items, err := fetch(ctx, session.UpstreamToken)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []R{}
	}

	if s.cache != nil {
		if err := s.cache.Store(ctx, kind, session.UpstreamToken, items); err != nil {
			s.log.Warn("record cache write failed", "kind", kind, "error", err)
		}
	}
	return items, nil
}

func asAccreditable[R domain.Accreditable](items []R) []domain.Accreditable {
	out := make([]domain.Accreditable, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// FilterByName keeps records whose name contains search, ignoring case.
// An empty search keeps everything.
func FilterByName[R domain.Accreditable](records []R, search string) []R {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return records
	}
	out := make([]R, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Base().Name), search) {
			out = append(out, r)
		}
	}
	return out
}
