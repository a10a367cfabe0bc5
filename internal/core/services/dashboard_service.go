package services

import (
	"context"
	"sort"
	"time"

	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/core/stats"
	"accredit-dashboard/internal/pkg/logger"
	"accredit-dashboard/internal/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// DashboardService handles dashboard operations
type DashboardService struct {
	records *RecordService
	metrics *metrics.Metrics
	loc     *time.Location
	log     *logger.Logger
	now     func() time.Time
}

// NewDashboardService creates a new dashboard service. Buckets follow loc.
func NewDashboardService(records *RecordService, m *metrics.Metrics, loc *time.Location, log *logger.Logger) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DashboardService{records: records, metrics: m, loc: loc, log: log, now: time.Now}
}

// ============================================================
// Summary cards
// ============================================================

// KindSummary counts one collection
type KindSummary struct {
	Total                int `json:"total"`
	Received             int `json:"received"`
	NotReceived          int `json:"notReceived"`
	Accepted             int `json:"accepted"`
	PendingAccreditation int `json:"pendingAccreditation"`
}

// Summary represents the dashboard cards
type Summary struct {
	TotalAccreditations int         `json:"totalAccreditations"`
	Facilities          KindSummary `json:"facilities"`
	Professionals       KindSummary `json:"professionals"`
}

// Summary counts both collections. The two fetches run concurrently.
func (s *DashboardService) Summary(ctx context.Context, session *domain.Session) (*Summary, error) {
	var facilities, professionals []domain.Accreditable

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		facilities, err = s.records.Fetch(gctx, session, domain.FacilityKind)
		return err
	})
	g.Go(func() (err error) {
		professionals, err = s.records.Fetch(gctx, session, domain.ProfessionalKind)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Summary{
		Facilities:    summarize(facilities),
		Professionals: summarize(professionals),
	}
	out.TotalAccreditations = out.Facilities.Total + out.Professionals.Total
	return out, nil
}

func summarize(records []domain.Accreditable) KindSummary {
	sum := KindSummary{Total: len(records)}
	for _, r := range records {
		base := r.Base()
		if base.Status.IsReceived() {
			sum.Received++
		} else {
			sum.NotReceived++
		}
		if base.AccreditationStatus.Label() == string(domain.AccreditationPending) {
			sum.PendingAccreditation++
		} else {
			sum.Accepted++
		}
	}
	return sum
}

// ============================================================
// Statistics
// ============================================================

// StatsQuery selects one chart
type StatsQuery struct {
	Kind        string
	Granularity string
	Year        int
}

// Stats is the chart payload
type Stats struct {
	Kind  domain.RecordKind `json:"kind"`
	Title string            `json:"title"`
	*stats.Result
}

// HistoryView is the drill-down table payload
type HistoryView struct {
	Kind        domain.RecordKind  `json:"kind"`
	Title       string             `json:"title"`
	Granularity stats.Granularity  `json:"granularity"`
	Year        int                `json:"year,omitempty"`
	Rows        []stats.HistoryRow `json:"rows"`
}

// YearOptions lists the years a chart can be drawn for
type YearOptions struct {
	Kind    domain.RecordKind `json:"kind"`
	Years   []int             `json:"years"`
	Current int               `json:"current"`
}

// Stats aggregates one collection. Year defaults to the current year.
func (s *DashboardService) Stats(ctx context.Context, session *domain.Session, q StatsQuery) (*Stats, error) {
	kind, g, year, err := s.parseQuery(q)
	if err != nil {
		return nil, err
	}

	records, err := s.records.Fetch(ctx, session, kind)
	if err != nil {
		return nil, err
	}

	res, err := stats.Aggregate(records, g, year, s.loc)
	if err != nil {
		return nil, err
	}
	s.reportSkipped(kind, res.Skipped)

	return &Stats{
		Kind:   kind,
		Title:  stats.Title(kind.Label(), g),
		Result: res,
	}, nil
}

// History folds the buckets of one chart into per-bucket totals
func (s *DashboardService) History(ctx context.Context, session *domain.Session, q StatsQuery) (*HistoryView, error) {
	st, err := s.Stats(ctx, session, q)
	if err != nil {
		return nil, err
	}
	return &HistoryView{
		Kind:        st.Kind,
		Title:       st.Title,
		Granularity: st.Granularity,
		Year:        st.Year,
		Rows:        stats.History(st.Result),
	}, nil
}

// Years lists the receipt years present in a collection plus the current year
func (s *DashboardService) Years(ctx context.Context, session *domain.Session, kindParam string) (*YearOptions, error) {
	kind, err := domain.ParseRecordKind(kindParam)
	if err != nil {
		return nil, err
	}
	records, err := s.records.Fetch(ctx, session, kind)
	if err != nil {
		return nil, err
	}

	current := s.now().In(s.loc).Year()
	years := stats.Years(records, s.loc)
	if i := sort.SearchInts(years, current); i == len(years) || years[i] != current {
		years = append(years, current)
		sort.Ints(years)
	}

	return &YearOptions{Kind: kind, Years: years, Current: current}, nil
}

func (s *DashboardService) parseQuery(q StatsQuery) (domain.RecordKind, stats.Granularity, int, error) {
	kind, err := domain.ParseRecordKind(q.Kind)
	if err != nil {
		return "", "", 0, err
	}
	g, err := stats.ParseGranularity(q.Granularity)
	if err != nil {
		return "", "", 0, domain.NewValidationError("granularity", "Granularity must be monthly, quarterly or yearly")
	}
	year := q.Year
	if year == 0 && g != stats.Yearly {
		year = s.now().In(s.loc).Year()
	}
	if year < 0 {
		return "", "", 0, domain.NewValidationError("year", "Year must be positive")
	}
	return kind, g, year, nil
}

func (s *DashboardService) reportSkipped(kind domain.RecordKind, skipped []stats.Skip) {
	if len(skipped) == 0 {
		return
	}
	byReason := map[stats.SkipReason]int{}
	for _, sk := range skipped {
		byReason[sk.Reason]++
	}
	for reason, n := range byReason {
		s.metrics.AggregationSkipped(string(kind), string(reason), n)
	}
	s.log.Warn("records skipped during aggregation", "kind", kind, "count", len(skipped))
}
