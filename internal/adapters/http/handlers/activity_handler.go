package handlers

import (
	"accredit-dashboard/internal/core/services"
	"accredit-dashboard/internal/pkg/logger"
	"accredit-dashboard/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ActivityHandler serves the recent activity panel
type ActivityHandler struct {
	activityService *services.ActivityService
	log             *logger.Logger
}

func NewActivityHandler(activityService *services.ActivityService, log *logger.Logger) *ActivityHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ActivityHandler{activityService: activityService, log: log}
}

// Recent lists the latest record mutations
// @Summary Recent activity
// @Tags Activity
// @Produce json
// @Security BearerAuth
// @Param kind query string false "facility or health-professional"
// @Param limit query int false "Number of entries" default(20)
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /activity [get]
func (h *ActivityHandler) Recent(c *fiber.Ctx) error {
	entries, err := h.activityService.Recent(c.UserContext(), c.Query("kind"), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, h.log, err, "Failed to load activity")
	}
	return response.Success(c, "Recent activity retrieved", entries)
}
