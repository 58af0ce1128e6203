package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/snsy/gas-station-monitor/internal/domain"
	"github.com/snsy/gas-station-monitor/internal/repository"
	"github.com/snsy/gas-station-monitor/internal/service"
)

func listDevices(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := repository.DeviceFilter{
			Role:   domain.DeviceRole(c.Query("role")),
			Search: c.Query("search"),
		}
		if sid := c.QueryInt("station_id", 0); sid > 0 {
			id := int64(sid)
			f.StationID = &id
		}
		var online *bool
		if v := c.Query("online"); v != "" {
			b := v == "1" || v == "true"
			online = &b
		}
		page := c.QueryInt("page", 1)
		perPage := c.QueryInt("per_page", 10)
		items, total, err := svcs.Directory.ListDevices(c.Context(), f, online, page, perPage)
		if err != nil {
			return failErr(c, err)
		}
		page, perPage = repository.ClampPaging(page, perPage)
		return ok(c, "ok", repository.NewPage(items, total, page, perPage))
	}
}

func createDevice(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.DeviceInput
		if err := c.BodyParser(&in); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request body")
		}
		d, err := svcs.Directory.CreateDevice(c.Context(), in)
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "created", d)
	}
}

func getDevice(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := svcs.Directory.GetDevice(c.Context(), c.Params("imei"))
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "ok", v)
	}
}

func bindDevice(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			StationID *int64 `json:"station_id"`
		}
		if err := c.BodyParser(&req); err != nil || req.StationID == nil {
			return fail(c, fiber.StatusBadRequest, "station_id is required")
		}
		d, err := svcs.Directory.BindDevice(c.Context(), c.Params("imei"), *req.StationID)
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "bound", d)
	}
}

func unbindDevice(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := svcs.Directory.UnbindDevice(c.Context(), c.Params("imei"))
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, "unbound", d)
	}
}
