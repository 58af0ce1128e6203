package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/snsy/gas-station-monitor/internal/repository"
	"github.com/snsy/gas-station-monitor/internal/service"
)

func listStations(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := c.QueryInt("page", 1)
		perPage := c.QueryInt("per_page", 10)
		items, total, err := svcs.Repos.Stations.List(c.Context(), c.Query("search"), page, perPage)
		if err != nil {
			return failErr(c, err)
		}
		page, perPage = repository.ClampPaging(page, perPage)
		return ok(c, "ok", repository.NewPage(items, total, page, perPage))
	}
}

func stationStats(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := svcs.Directory.GetStats(c.Context())
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "ok", stats)
	}
}

func getStation(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid station id")
		}
		detail, err := svcs.Directory.GetStation(c.Context(), int64(id))
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "ok", detail)
	}
}

func createStation(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.StationInput
		if err := c.BodyParser(&in); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request body")
		}
		st, err := svcs.Directory.CreateStation(c.Context(), in)
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "created", st)
	}
}

func updateStation(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid station id")
		}
		var in service.StationInput
		if err := c.BodyParser(&in); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request body")
		}
		st, err := svcs.Directory.UpdateStation(c.Context(), int64(id), in)
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "updated", st)
	}
}

func deleteStation(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid station id")
		}
		if err := svcs.Directory.DeleteStation(c.Context(), int64(id)); err != nil {
			return failErr(c, err)
		}
		return ok(c, "deleted", nil)
	}
}
