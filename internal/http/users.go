package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/snsy/gas-station-monitor/internal/service"
)

func listUsers(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := svcs.Auth.ListUsers(c.Context())
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "ok", users)
	}
}

func createUser(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.UserInput
		if err := c.BodyParser(&in); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request body")
		}
		u, err := svcs.Auth.CreateUser(c.Context(), in)
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "created", u)
	}
}

func updateUser(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid user id")
		}
		var in service.UserInput
		if err := c.BodyParser(&in); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request body")
		}
		u, err := svcs.Auth.UpdateUser(c.Context(), int64(id), in)
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "updated", u)
	}
}

func deleteUser(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid user id")
		}
		caller := currentUser(c)
		if err := svcs.Auth.DeleteUser(c.Context(), int64(id), caller.ID); err != nil {
			return failErr(c, err)
		}
		return ok(c, "deleted", nil)
	}
}
