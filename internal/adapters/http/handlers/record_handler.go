package handlers

import (
	"encoding/json"

	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/core/services"
	"accredit-dashboard/internal/pkg/logger"
	"accredit-dashboard/internal/pkg/pagination"
	"accredit-dashboard/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RecordHandler serves the facility and health professional tables.
// Each method returns a handler bound to one record kind.
type RecordHandler struct {
	records *services.RecordService
	log     *logger.Logger
}

func NewRecordHandler(records *services.RecordService, log *logger.Logger) *RecordHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RecordHandler{records: records, log: log}
}

// List returns the records of kind
// @Summary List records
// @Description Whole collection by default; filter by name and page with limit
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Param search query string false "Case-insensitive name search"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page, 0 for all" default(0)
// @Success 200 {object} response.Response{data=services.RecordList}
// @Failure 401 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /facility [get]
// @Router /health-professional [get]
func (h *RecordHandler) List(kind domain.RecordKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := sessionFrom(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		params := pagination.GetParams(c)
		list, err := h.records.List(c.UserContext(), session, kind, services.ListFilter{
			Search: c.Query("search"),
			Page:   params.Page,
			Limit:  params.Limit,
		})
		if err != nil {
			return respondError(c, h.log, err, "Failed to load records")
		}

		return response.Success(c, kind.Label()+" records retrieved", list)
	}
}

// Create adds a record of kind
// @Summary Create record
// @Description Validate and create a record, then return the refreshed collection
// @Tags Records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body domain.Facility true "Record (facility or health professional)"
// @Success 201 {object} response.Response{data=services.RecordList}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /facility [post]
// @Router /health-professional [post]
func (h *RecordHandler) Create(kind domain.RecordKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := sessionFrom(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		record, err := decodeRecord(kind, c.Body())
		if err != nil {
			return response.BadRequest(c, "Invalid request body")
		}

		list, err := h.records.Create(c.UserContext(), session, record)
		if err != nil {
			return respondError(c, h.log, err, "Failed to create record")
		}

		return response.Created(c, kind.Label()+" Added", list)
	}
}

// Update replaces a record of kind
// @Summary Update record
// @Description Validate and replace a record, then return the refreshed collection
// @Tags Records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Record ID"
// @Param body body domain.Facility true "Record (facility or health professional)"
// @Success 200 {object} response.Response{data=services.RecordList}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /facility/{id} [put]
// @Router /health-professional/{id} [put]
func (h *RecordHandler) Update(kind domain.RecordKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := sessionFrom(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		record, err := decodeRecord(kind, c.Body())
		if err != nil {
			return response.BadRequest(c, "Invalid request body")
		}

		list, err := h.records.Update(c.UserContext(), session, domain.RecordID(c.Params("id")), record)
		if err != nil {
			return respondError(c, h.log, err, "Failed to update record")
		}

		return response.Success(c, kind.Label()+" Updated", list)
	}
}

// Delete removes a record of kind
// @Summary Delete record
// @Description Delete a record, then return the refreshed collection
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Param id path string true "Record ID"
// @Success 200 {object} response.Response{data=services.RecordList}
// @Failure 404 {object} response.Response
// @Router /facility/{id} [delete]
// @Router /health-professional/{id} [delete]
func (h *RecordHandler) Delete(kind domain.RecordKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := sessionFrom(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		list, err := h.records.Delete(c.UserContext(), session, kind, domain.RecordID(c.Params("id")))
		if err != nil {
			return respondError(c, h.log, err, "Failed to delete record")
		}

		return response.Success(c, kind.Label()+" Deleted", list)
	}
}

// decodeRecord reads a request body as the concrete record type of kind
func decodeRecord(kind domain.RecordKind, body []byte) (domain.Accreditable, error) {
	switch kind {
	case domain.FacilityKind:
		var f domain.Facility
		if err := json.Unmarshal(body, &f); err != nil {
			return nil, err
		}
		return f, nil
	default:
		var p domain.Professional
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
}
