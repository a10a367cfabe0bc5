package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"accredit-dashboard/internal/adapters/persistence/models"
	"accredit-dashboard/internal/adapters/persistence/repositories"
	"accredit-dashboard/internal/adapters/recordstore"
	"accredit-dashboard/internal/config"
	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/pkg/secret"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeStore is an in-memory record store with call tracking and error injection
type fakeStore struct {
	mu sync.Mutex

	facilities    []domain.Facility
	professionals []domain.Professional
	nextID        int

	loginResult *recordstore.LoginResult
	LoginErr    error
	RegisterErr error
	ListErr     error
	CreateErr   error
	UpdateErr   error
	DeleteErr   error

	calls     map[string]int
	lastToken string
	lastID    domain.RecordID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID: 100,
		calls:  map[string]int{},
		loginResult: &recordstore.LoginResult{
			Token:   "upstream-token",
			Profile: domain.Profile{Name: "Juan Dela Cruz", Code: "1001"},
		},
	}
}

func (f *fakeStore) track(op, token string) {
	f.calls[op]++
	f.lastToken = token
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) Login(ctx context.Context, code, password string) (*recordstore.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("login", "")
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	return f.loginResult, nil
}

func (f *fakeStore) Register(ctx context.Context, code, name, password string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("register", "")
	if f.RegisterErr != nil {
		return nil, f.RegisterErr
	}
	return json.RawMessage(fmt.Sprintf(`{"code":%q,"name":%q}`, code, name)), nil
}

func (f *fakeStore) ListFacilities(ctx context.Context, token string) ([]domain.Facility, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("list_facilities", token)
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]domain.Facility(nil), f.facilities...), nil
}

func (f *fakeStore) ListProfessionals(ctx context.Context, token string) ([]domain.Professional, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("list_professionals", token)
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]domain.Professional(nil), f.professionals...), nil
}

func (f *fakeStore) Create(ctx context.Context, token string, record domain.Accreditable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("create", token)
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.nextID++
	id := domain.RecordID(strconv.Itoa(f.nextID))
	switch r := record.(type) {
	case domain.Facility:
		r.ID = id
		f.facilities = append(f.facilities, r)
	case domain.Professional:
		r.ID = id
		f.professionals = append(f.professionals, r)
	}
	return nil
}

func (f *fakeStore) Update(ctx context.Context, token string, id domain.RecordID, record domain.Accreditable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("update", token)
	f.lastID = id
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	switch r := record.(type) {
	case domain.Facility:
		for i := range f.facilities {
			if f.facilities[i].ID == id {
				r.ID = id
				f.facilities[i] = r
			}
		}
	case domain.Professional:
		for i := range f.professionals {
			if f.professionals[i].ID == id {
				r.ID = id
				f.professionals[i] = r
			}
		}
	}
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, token string, kind domain.RecordKind, id domain.RecordID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("delete", token)
	f.lastID = id
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if kind == domain.FacilityKind {
		kept := f.facilities[:0]
		for _, r := range f.facilities {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		f.facilities = kept
		return nil
	}
	kept := f.professionals[:0]
	for _, r := range f.professionals {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	f.professionals = kept
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return nil
}

// fakeCache stores JSON like the Redis cache does
type fakeCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []domain.RecordKind
	LoadErr     error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (c *fakeCache) Load(ctx context.Context, kind domain.RecordKind, token string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LoadErr != nil {
		return false, c.LoadErr
	}
	raw, ok := c.data[string(kind)+"|"+token]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) Store(ctx context.Context, kind domain.RecordKind, token string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[string(kind)+"|"+token] = raw
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, kind domain.RecordKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.data {
		if strings.HasPrefix(key, string(kind)+"|") {
			delete(c.data, key)
		}
	}
	c.invalidated = append(c.invalidated, kind)
	return nil
}

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

func newTestSessionService(t *testing.T, db *gorm.DB) *SessionService {
	t.Helper()
	return NewSessionService(repositories.NewSessionRepository(db), secret.NewSealer("test-session-secret"), time.Hour, nil)
}

func testSession() *domain.Session {
	return &domain.Session{
		ID:            uuid.NewString(),
		Profile:       domain.Profile{Name: "Juan Dela Cruz", Code: "1001"},
		UpstreamToken: "upstream-token",
		ExpiresAt:     time.Now().Add(time.Hour),
	}
}

func testConfig() *config.Config {
	return &config.Config{
		AppMode: "dev",
		JWT: config.JWTConfig{
			Secret:           "access-secret",
			RefreshSecret:    "refresh-secret",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		},
		Cron: config.CronConfig{
			SessionPurgeSchedule:  "@daily",
			ActivityPruneSchedule: "30 3 * * *",
			ActivityRetentionDays: 90,
		},
		Timezone: time.UTC,
	}
}

func day(y int, m time.Month, d int) domain.Timestamp {
	return domain.NewTimestamp(time.Date(y, m, d, 12, 0, 0, 0, time.UTC))
}

func strPtr(s string) *string {
	return &s
}
