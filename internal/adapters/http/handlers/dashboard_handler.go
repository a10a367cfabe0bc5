package handlers

import (
	"strconv"

	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/core/services"
	"accredit-dashboard/internal/pkg/logger"
	"accredit-dashboard/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct {
	dashboardService *services.DashboardService
	log              *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardService *services.DashboardService, log *logger.Logger) *DashboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &DashboardHandler{dashboardService: dashboardService, log: log}
}

// GetSummary returns the dashboard cards
// @Summary Dashboard summary
// @Description Record counts per kind and the total of accreditations
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=services.Summary}
// @Failure 401 {object} response.Response
// @Router /dashboard/summary [get]
func (h *DashboardHandler) GetSummary(c *fiber.Ctx) error {
	session, ok := sessionFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	data, err := h.dashboardService.Summary(c.UserContext(), session)
	if err != nil {
		return respondError(c, h.log, err, "Failed to get dashboard summary")
	}

	return response.Success(c, "Dashboard summary retrieved", data)
}

// GetStats returns chart buckets
// @Summary Accreditation statistics
// @Description Received records bucketed by month, quarter or year
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param kind query string true "facility or health-professional"
// @Param granularity query string false "monthly, quarterly or yearly" default(monthly)
// @Param year query int false "Year for monthly and quarterly, defaults to the current year"
// @Success 200 {object} response.Response{data=services.Stats}
// @Failure 400 {object} response.Response
// @Router /dashboard/stats [get]
func (h *DashboardHandler) GetStats(c *fiber.Ctx) error {
	session, ok := sessionFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	q, err := statsQuery(c)
	if err != nil {
		return respondError(c, h.log, err, "")
	}

	data, err := h.dashboardService.Stats(c.UserContext(), session, q)
	if err != nil {
		return respondError(c, h.log, err, "Failed to get statistics")
	}

	return response.Success(c, data.Title, data)
}

// GetHistory returns the drill-down table
// @Summary Statistics history
// @Description Per-bucket totals, flagging buckets without data
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param kind query string true "facility or health-professional"
// @Param granularity query string false "monthly, quarterly or yearly" default(monthly)
// @Param year query int false "Year for monthly and quarterly"
// @Success 200 {object} response.Response{data=services.HistoryView}
// @Failure 400 {object} response.Response
// @Router /dashboard/history [get]
func (h *DashboardHandler) GetHistory(c *fiber.Ctx) error {
	session, ok := sessionFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	q, err := statsQuery(c)
	if err != nil {
		return respondError(c, h.log, err, "")
	}

	data, err := h.dashboardService.History(c.UserContext(), session, q)
	if err != nil {
		return respondError(c, h.log, err, "Failed to get history")
	}

	return response.Success(c, data.Title, data)
}

// GetYears returns the selectable years
// @Summary Selectable years
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param kind query string true "facility or health-professional"
// @Success 200 {object} response.Response{data=services.YearOptions}
// @Router /dashboard/years [get]
func (h *DashboardHandler) GetYears(c *fiber.Ctx) error {
	session, ok := sessionFrom(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	data, err := h.dashboardService.Years(c.UserContext(), session, c.Query("kind"))
	if err != nil {
		return respondError(c, h.log, err, "Failed to get years")
	}

	return response.Success(c, "Years retrieved", data)
}

func statsQuery(c *fiber.Ctx) (services.StatsQuery, error) {
	q := services.StatsQuery{
		Kind:        c.Query("kind"),
		Granularity: c.Query("granularity"),
	}
	if raw := c.Query("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return q, domain.NewValidationError("year", "Year must be a number")
		}
		q.Year = year
	}
	return q, nil
}
