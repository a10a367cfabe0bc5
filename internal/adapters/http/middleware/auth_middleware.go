package middleware

import (
	"errors"
	"strings"

	"accredit-dashboard/internal/core/services"
	"accredit-dashboard/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware requires a valid access token bound to a live session.
// The loaded session is stored in Locals for handlers.
func AuthMiddleware(auth *services.AuthService, sessions *services.SessionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Get token from cookie or Authorization header
		accessToken := extractToken(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		// 2. Validate token
		claims, err := auth.ValidateAccessToken(accessToken)
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		// 3. Load session
		session, err := sessions.Load(c.UserContext(), claims.SessionID)
		if err != nil {
			if services.IsSessionError(err) {
				return response.Unauthorized(c, "Session has ended, please sign in again")
			}
			return response.InternalServerError(c, "Failed to load session")
		}

		// 4. Set session in context
		c.Locals("session", session)
		c.Locals("code", session.Profile.Code)

		return c.Next()
	}
}

func extractToken(c *fiber.Ctx) string {
	if token := c.Cookies("access_token"); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}
