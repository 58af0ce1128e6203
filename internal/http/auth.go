package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/snsy/gas-station-monitor/internal/service"
)

func login(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request body")
		}
		token, user, err := svcs.Auth.Login(c.Context(), req.Username, req.Password)
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "login ok", fiber.Map{"token": token, "user": user})
	}
}

// logout is a client-side operation with stateless tokens; the endpoint
// exists so clients have a uniform flow.
func logout(c *fiber.Ctx) error {
	return ok(c, "logout ok", nil)
}

func me(c *fiber.Ctx) error {
	return ok(c, "ok", currentUser(c))
}
