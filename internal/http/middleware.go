package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/snsy/gas-station-monitor/internal/domain"
	"github.com/snsy/gas-station-monitor/internal/service"
)

const localUser = "current_user"

// requireAuth validates the bearer token and loads the calling user.
func requireAuth(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return fail(c, fiber.StatusUnauthorized, "missing bearer token")
		}
		id, err := svcs.Auth.ParseToken(token)
		if err != nil {
			return failErr(c, err)
		}
		u, err := svcs.Auth.CurrentUser(c.Context(), id)
		if err != nil {
			return fail(c, fiber.StatusUnauthorized, "unknown user")
		}
		if u.Status != 1 {
			return fail(c, fiber.StatusForbidden, "account disabled")
		}
		c.Locals(localUser, u)
		return c.Next()
	}
}

// requireAdmin gates administrative mutations.
func requireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := currentUser(c)
		if u == nil || u.Role != domain.UserRoleAdmin {
			return fail(c, fiber.StatusForbidden, "admin role required")
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals(localUser).(*domain.User)
	return u
}
