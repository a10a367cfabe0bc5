package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"accredit-dashboard/internal/adapters/http/middleware"
	"accredit-dashboard/internal/adapters/persistence/models"
	"accredit-dashboard/internal/adapters/recordstore"
	"accredit-dashboard/internal/config"
	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// memStore is an in-memory record store
type memStore struct {
	mu            sync.Mutex
	facilities    []domain.Facility
	professionals []domain.Professional
	nextID        int
	listErr       error
}

func (s *memStore) Login(ctx context.Context, code, password string) (*recordstore.LoginResult, error) {
	if password != "secret" {
		return nil, &recordstore.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
	}
	return &recordstore.LoginResult{Token: "upstream-" + code, Profile: domain.Profile{Name: "Maria Santos", Code: code}}, nil
}

func (s *memStore) Register(ctx context.Context, code, name, password string) (json.RawMessage, error) {
	return json.RawMessage(fmt.Sprintf(`{"code":%q,"name":%q}`, code, name)), nil
}

func (s *memStore) ListFacilities(ctx context.Context, token string) ([]domain.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]domain.Facility(nil), s.facilities...), nil
}

func (s *memStore) ListProfessionals(ctx context.Context, token string) ([]domain.Professional, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]domain.Professional(nil), s.professionals...), nil
}

func (s *memStore) Create(ctx context.Context, token string, record domain.Accreditable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := domain.RecordID(strconv.Itoa(s.nextID))
	switch r := record.(type) {
	case domain.Facility:
		r.ID = id
		s.facilities = append(s.facilities, r)
	case domain.Professional:
		r.ID = id
		s.professionals = append(s.professionals, r)
	}
	return nil
}

func (s *memStore) Update(ctx context.Context, token string, id domain.RecordID, record domain.Accreditable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := record.(domain.Facility); ok {
		for i := range s.facilities {
			if s.facilities[i].ID == id {
				f.ID = id
				s.facilities[i] = f
				return nil
			}
		}
	}
	return &recordstore.APIError{StatusCode: http.StatusNotFound, Message: "Record not found"}
}

func (s *memStore) Delete(ctx context.Context, token string, kind domain.RecordKind, id domain.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.facilities {
		if s.facilities[i].ID == id {
			s.facilities = append(s.facilities[:i], s.facilities[i+1:]...)
			return nil
		}
	}
	return &recordstore.APIError{StatusCode: http.StatusNotFound, Message: "Record not found"}
}

func (s *memStore) Ping(ctx context.Context) error {
	return nil
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

type testApp struct {
	app   *fiber.App
	store *memStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := config.OpenDatabase(sqlite.Open(dsn), false)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := &config.Config{
		AppMode: "dev",
		JWT: config.JWTConfig{
			Secret:           "access-secret",
			RefreshSecret:    "refresh-secret",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		},
		Session:  config.SessionConfig{Secret: "session-secret"},
		Timezone: time.UTC,
	}

	store := &memStore{nextID: 100}
	deps := Dependencies{
		DB:      db,
		Config:  cfg,
		Store:   store,
		Metrics: metrics.New(),
	}

	app := fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
	Setup(app, deps, NewServices(deps))

	return &testApp{app: app, store: store}
}

func (a *testApp) do(t *testing.T, method, target, token string, body any) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	var env envelope
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

type tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (a *testApp) login(t *testing.T) tokens {
	t.Helper()
	resp, env := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"code": "1001", "password": "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	var tk tokens
	require.NoError(t, json.Unmarshal(env.Data, &tk))
	require.NotEmpty(t, tk.AccessToken)
	return tk
}

func receivedFacility(id, name string, level domain.Level, at time.Time) domain.Facility {
	return domain.Facility{
		Record: domain.Record{
			ID:                  domain.RecordID(id),
			LicenceNumber:       "LIC-" + id,
			Name:                name,
			Status:              domain.StatusReceived,
			AccreditationStatus: domain.AccreditationAccepted,
			ReceivedDate:        domain.NewTimestamp(at),
		},
		Level: level,
	}
}

func TestHealth_ReportsDependencies(t *testing.T) {
	a := newTestApp(t)

	resp, err := a.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Equal(t, "healthy", body.Checks["record_store"])
	assert.Equal(t, "disabled", body.Checks["cache"])
}

func TestMetrics_Exposed(t *testing.T) {
	a := newTestApp(t)

	resp, err := a.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	a := newTestApp(t)

	t.Run("missing fields", func(t *testing.T) {
		resp, env := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Employee number is required!", env.Fields["code"])
		assert.Equal(t, "Password is required!", env.Fields["password"])
	})

	t.Run("rejected upstream", func(t *testing.T) {
		resp, env := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"code": "1001", "password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid credentials", env.Error)
	})

	t.Run("success sets cookies", func(t *testing.T) {
		resp, env := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"code": "1001", "password": "secret"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Employee Sign In", env.Message)

		names := map[string]bool{}
		for _, c := range resp.Cookies() {
			names[c.Name] = c.HttpOnly
		}
		assert.True(t, names["access_token"])
		assert.True(t, names["refresh_token"])
	})
}

func TestRegister(t *testing.T) {
	a := newTestApp(t)

	resp, env := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"code": "12ab", "name": "Ana", "password": "secret"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Employee number must contain digits only", env.Fields["code"])

	resp, env = a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"code": "1234", "name": "Ana", "password": "secret"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Employee Added", env.Message)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	a := newTestApp(t)

	for _, target := range []string{
		"/api/facility",
		"/api/health-professional",
		"/api/dashboard/summary",
		"/api/export/facility",
		"/api/activity",
		"/api/auth/me",
	} {
		resp, _ := a.do(t, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, target)
	}

	resp, env := a.do(t, http.MethodGet, "/api/facility", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid access token", env.Error)
}

func TestRecordLifecycle(t *testing.T) {
	a := newTestApp(t)
	tk := a.login(t)

	created := map[string]any{
		"name":          "Makati Medical Center",
		"licenceNumber": "LIC-9",
		"level":         3,
		"status":        "RECIEVED",
		"receivedDate":  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
	}
	resp, env := a.do(t, http.MethodPost, "/api/facility", tk.AccessToken, created)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)
	assert.Equal(t, "Facility Added", env.Message)

	var list struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 1)
	id := fmt.Sprint(list.Items[0]["id"])

	created["name"] = "Makati Medical Center Annex"
	resp, env = a.do(t, http.MethodPut, "/api/facility/"+id, tk.AccessToken, created)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	assert.Contains(t, string(env.Data), "Annex")

	resp, env = a.do(t, http.MethodGet, "/api/facility?search=annex", tk.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Items, 1)
	assert.Equal(t, "no-store, no-cache, must-revalidate", resp.Header.Get("Cache-Control"))

	resp, _ = a.do(t, http.MethodDelete, "/api/facility/"+id, tk.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = a.do(t, http.MethodDelete, "/api/facility/"+id, tk.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Record not found", env.Error)

	resp, env = a.do(t, http.MethodGet, "/api/activity?kind=facility", tk.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []models.ActivityLog
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 4)
	assert.Equal(t, models.OutcomeFailure, entries[0].Outcome)
	assert.Equal(t, "1001", entries[0].ActorCode)
	assert.Empty(t, entries[0].Snapshot)
	assert.Equal(t, "Makati Medical Center Annex", entries[2].RecordName)
	assert.Contains(t, string(entries[3].Snapshot), `"licenceNumber":"LIC-9"`)
}

func TestCreate_Invalid(t *testing.T) {
	a := newTestApp(t)
	tk := a.login(t)

	resp, env := a.do(t, http.MethodPost, "/api/facility", tk.AccessToken, map[string]any{"level": 7})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Name is required", env.Fields["name"])
	assert.Contains(t, env.Fields, "level")

	req := httptest.NewRequest(http.MethodPost, "/api/facility", strings.NewReader("{"))
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tk.AccessToken)
	raw, err := a.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestDashboard(t *testing.T) {
	a := newTestApp(t)
	a.store.facilities = []domain.Facility{
		receivedFacility("1", "Alpha", 1, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)),
		receivedFacility("2", "Beta", 2, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)),
		receivedFacility("3", "Gamma", 2, time.Date(2023, 11, 20, 0, 0, 0, 0, time.UTC)),
	}
	tk := a.login(t)

	t.Run("quarterly", func(t *testing.T) {
		resp, env := a.do(t, http.MethodGet, "/api/dashboard/stats?kind=facility&granularity=quarterly&year=2024", tk.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
		assert.Equal(t, "private, max-age=30", resp.Header.Get("Cache-Control"))

		var st struct {
			Title   string `json:"title"`
			Buckets []struct {
				Name    string         `json:"name"`
				HasData bool           `json:"hasData"`
				Counts  map[string]int `json:"counts"`
			} `json:"buckets"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &st))
		require.Len(t, st.Buckets, 4)
		assert.Equal(t, 1, st.Buckets[0].Counts["level1"])
		assert.Equal(t, 1, st.Buckets[1].Counts["level2"])
		assert.False(t, st.Buckets[3].HasData)
	})

	t.Run("history yearly", func(t *testing.T) {
		resp, env := a.do(t, http.MethodGet, "/api/dashboard/history?kind=facility&granularity=yearly", tk.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
		assert.Contains(t, string(env.Data), `"2023"`)
		assert.Contains(t, string(env.Data), `"2024"`)
	})

	t.Run("years", func(t *testing.T) {
		resp, env := a.do(t, http.MethodGet, "/api/dashboard/years?kind=facility", tk.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var y struct {
			Years []int `json:"years"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &y))
		assert.Contains(t, y.Years, 2023)
		assert.Contains(t, y.Years, time.Now().Year())
	})

	t.Run("summary", func(t *testing.T) {
		resp, env := a.do(t, http.MethodGet, "/api/dashboard/summary", tk.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(env.Data), `"totalAccreditations"`)
	})

	t.Run("bad query", func(t *testing.T) {
		resp, env := a.do(t, http.MethodGet, "/api/dashboard/stats?kind=facility&year=abc", tk.AccessToken, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Year must be a number", env.Fields["year"])

		resp, _ = a.do(t, http.MethodGet, "/api/dashboard/stats?kind=hospital", tk.AccessToken, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, env = a.do(t, http.MethodGet, "/api/dashboard/stats?kind=facility&granularity=weekly", tk.AccessToken, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, env.Fields, "granularity")
	})
}

func TestExport(t *testing.T) {
	a := newTestApp(t)
	a.store.facilities = []domain.Facility{
		receivedFacility("1", "Alpha Clinic", 1, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)),
		receivedFacility("2", "Beta Hospital", 2, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)),
	}
	tk := a.login(t)

	req := httptest.NewRequest(http.MethodGet, "/api/export/facility?search=beta", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tk.AccessToken)
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), "text/csv"))
	assert.Equal(t, `attachment; filename="facility_report.csv"`, resp.Header.Get(fiber.HeaderContentDisposition))
	assert.Equal(t, "1", resp.Header.Get("X-Total-Count"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Beta Hospital")
	assert.NotContains(t, string(body), "Alpha Clinic")
}

func TestUpstreamFailures(t *testing.T) {
	a := newTestApp(t)
	tk := a.login(t)

	a.store.listErr = fmt.Errorf("list facilities: %w", domain.ErrUpstreamUnavailable)
	resp, env := a.do(t, http.MethodGet, "/api/facility", tk.AccessToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Record store is unavailable, please try again later", env.Error)

	a.store.listErr = &recordstore.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	resp, env = a.do(t, http.MethodGet, "/api/facility", tk.AccessToken, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "Failed to load records", env.Error)
}

func TestRefreshAndLogout(t *testing.T) {
	a := newTestApp(t)
	tk := a.login(t)

	resp, env := a.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": tk.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	var rotated tokens
	require.NoError(t, json.Unmarshal(env.Data, &rotated))
	assert.NotEqual(t, tk.RefreshToken, rotated.RefreshToken)

	// the old refresh token is spent; presenting it again ends the session
	resp, _ = a.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": tk.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = a.do(t, http.MethodGet, "/api/auth/me", rotated.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Session has ended, please sign in again", env.Error)

	fresh := a.login(t)
	resp, env = a.do(t, http.MethodGet, "/api/auth/me", fresh.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), "Maria Santos")

	resp, _ = a.do(t, http.MethodPost, "/api/auth/logout", fresh.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/api/facility", fresh.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
