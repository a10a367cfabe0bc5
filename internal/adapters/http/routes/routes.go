package routes

import (
	"time"

	"accredit-dashboard/internal/adapters/http/handlers"
	"accredit-dashboard/internal/adapters/http/middleware"
	"accredit-dashboard/internal/adapters/persistence/repositories"
	"accredit-dashboard/internal/config"
	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/core/services"
	"accredit-dashboard/internal/pkg/logger"
	"accredit-dashboard/internal/pkg/metrics"
	"accredit-dashboard/internal/pkg/secret"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// dashboardMaxAge is how long browsers may reuse a chart response
const dashboardMaxAge = 30 * time.Second

// Dependencies are the adapters the application is assembled from
type Dependencies struct {
	DB      *gorm.DB
	Config  *config.Config
	Store   services.RecordStore
	Cache   services.RecordCache // nil disables caching
	Metrics *metrics.Metrics
	Log     *logger.Logger
}

// Services holds the wired core services. main shares them with the cron jobs.
type Services struct {
	Sessions  *services.SessionService
	Auth      *services.AuthService
	Activity  *services.ActivityService
	Records   *services.RecordService
	Dashboard *services.DashboardService
	Export    *services.ExportService
}

// NewServices wires repositories into services
func NewServices(d Dependencies) *Services {
	sessionRepo := repositories.NewSessionRepository(d.DB)
	activityRepo := repositories.NewActivityRepository(d.DB)

	ttl := time.Duration(d.Config.JWT.RefreshTokenDays) * 24 * time.Hour
	sessions := services.NewSessionService(sessionRepo, secret.NewSealer(d.Config.Session.Secret), ttl, d.Log)
	activity := services.NewActivityService(activityRepo, d.Log)
	records := services.NewRecordService(d.Store, d.Cache, activity, d.Log)

	return &Services{
		Sessions:  sessions,
		Auth:      services.NewAuthService(d.Store, sessions, d.Config, d.Log),
		Activity:  activity,
		Records:   records,
		Dashboard: services.NewDashboardService(records, d.Metrics, d.Config.Timezone, d.Log),
		Export:    services.NewExportService(records, d.Config.Timezone),
	}
}

// Setup configures all routes for the application
func Setup(app *fiber.App, d Dependencies, svc *Services) {
	var cachePinger handlers.Pinger
	if p, ok := d.Cache.(handlers.Pinger); ok {
		cachePinger = p
	}

	healthHandler := handlers.NewHealthHandler(d.DB, d.Store, cachePinger, d.Config.AppMode)
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Sessions, d.Config, d.Log)
	recordHandler := handlers.NewRecordHandler(svc.Records, d.Log)
	dashboardHandler := handlers.NewDashboardHandler(svc.Dashboard, d.Log)
	exportHandler := handlers.NewExportHandler(svc.Export, d.Log)
	activityHandler := handlers.NewActivityHandler(svc.Activity, d.Log)

	requireAuth := middleware.AuthMiddleware(svc.Auth, svc.Sessions)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api")

	setupAuthRoutes(api.Group("/auth"), authHandler, requireAuth)

	setupRecordRoutes(api.Group("/facility", requireAuth, middleware.NoCacheHeaders()), recordHandler, domain.FacilityKind)
	setupRecordRoutes(api.Group("/health-professional", requireAuth, middleware.NoCacheHeaders()), recordHandler, domain.ProfessionalKind)
	setupDashboardRoutes(api.Group("/dashboard", requireAuth, middleware.PrivateCacheHeaders(dashboardMaxAge)), dashboardHandler)
	setupExportRoutes(api.Group("/export", requireAuth, middleware.NoCacheHeaders()), exportHandler)
	api.Get("/activity", requireAuth, middleware.NoCacheHeaders(), activityHandler.Recent)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, requireAuth fiber.Handler) {
	// Public routes
	router.Post("/register", middleware.AuthRateLimiter(), handler.Register)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)

	// Protected routes
	router.Post("/logout", requireAuth, handler.Logout)
	router.Post("/logout-all", requireAuth, handler.LogoutAll)
	router.Get("/me", requireAuth, handler.Me)
}

func setupRecordRoutes(router fiber.Router, handler *handlers.RecordHandler, kind domain.RecordKind) {
	router.Get("/", handler.List(kind))
	router.Post("/", handler.Create(kind))
	router.Put("/:id", handler.Update(kind))
	router.Delete("/:id", handler.Delete(kind))
}

func setupDashboardRoutes(router fiber.Router, handler *handlers.DashboardHandler) {
	router.Get("/summary", handler.GetSummary)
	router.Get("/stats", handler.GetStats)
	router.Get("/history", handler.GetHistory)
	router.Get("/years", handler.GetYears)
}

func setupExportRoutes(router fiber.Router, handler *handlers.ExportHandler) {
	router.Get("/facility", handler.Export(domain.FacilityKind))
	router.Get("/health-professional", handler.Export(domain.ProfessionalKind))
}
