package handlers

import (
	"strconv"

	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/core/services"
	"accredit-dashboard/internal/pkg/logger"
	"accredit-dashboard/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ExportHandler serves CSV reports
type ExportHandler struct {
	exportService *services.ExportService
	log           *logger.Logger
}

func NewExportHandler(exportService *services.ExportService, log *logger.Logger) *ExportHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ExportHandler{exportService: exportService, log: log}
}

// Export downloads the table of kind as CSV
// @Summary Export CSV
// @Description Download the table, narrowed by the same name search
// @Tags Export
// @Produce text/csv
// @Security BearerAuth
// @Param search query string false "Case-insensitive name search"
// @Success 200 {file} file
// @Failure 401 {object} response.Response
// @Router /export/facility [get]
// @Router /export/health-professional [get]
func (h *ExportHandler) Export(kind domain.RecordKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := sessionFrom(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		out, err := h.exportService.Export(c.UserContext(), session, kind, c.Query("search"))
		if err != nil {
			return respondError(c, h.log, err, "Failed to export records")
		}

		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+out.Filename+`"`)
		c.Set("X-Total-Count", strconv.Itoa(out.Rows))
		return c.Send(out.Data)
	}
}
