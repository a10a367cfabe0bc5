package handlers

import (
	"context"
	"errors"

	"accredit-dashboard/internal/adapters/recordstore"
	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/core/services"
	"accredit-dashboard/internal/pkg/logger"
	"accredit-dashboard/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// respondError maps a service error onto the response envelope.
// Record store client errors keep their status and message so the UI can show them as is.
func respondError(c *fiber.Ctx, log *logger.Logger, err error, fallback string) error {
	var verr *domain.ValidationError
	var apiErr *recordstore.APIError

	switch {
	case errors.As(err, &verr):
		return response.ValidationFailed(c, verr.Fields)
	case services.IsSessionError(err):
		return response.Unauthorized(c, "Session has ended, please sign in again")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		log.Warn("record store unavailable", "path", c.Path(), "error", err)
		return response.ServiceUnavailable(c, "Record store is unavailable, please try again later")
	case errors.As(err, &apiErr) && apiErr.StatusCode < fiber.StatusInternalServerError:
		return response.Error(c, apiErr.StatusCode, apiErr.Message)
	case errors.Is(err, domain.ErrUnauthorized):
		return response.Unauthorized(c, "Invalid or expired token")
	case errors.Is(err, domain.ErrInvalidInput):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, "Record not found")
	case errors.Is(err, domain.ErrConflict):
		return response.Conflict(c, "Record already exists")
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, context.DeadlineExceeded):
		log.Error("record store request failed", "path", c.Path(), "error", err)
		return response.BadGateway(c, fallback)
	default:
		log.Error("request failed", "path", c.Path(), "error", err)
		return response.InternalServerError(c, fallback)
	}
}

// sessionFrom returns the session stored by the auth middleware
func sessionFrom(c *fiber.Ctx) (*domain.Session, bool) {
	session, ok := c.Locals("session").(*domain.Session)
	return session, ok && session != nil
}
