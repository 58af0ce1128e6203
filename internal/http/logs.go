package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/snsy/gas-station-monitor/internal/domain"
	"github.com/snsy/gas-station-monitor/internal/repository"
	"github.com/snsy/gas-station-monitor/internal/service"
)

func listAlarms(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := repository.AlarmFilter{
			Kind:   domain.EventKind(c.Query("alarm_type")),
			Search: c.Query("search"),
		}
		if sid := c.QueryInt("station_id", 0); sid > 0 {
			id := int64(sid)
			f.StationID = &id
		}
		if v := c.Query("start_date"); v != "" {
			if t, err := time.Parse("2006-01-02", v); err == nil {
				f.From = &t
			}
		}
		if v := c.Query("end_date"); v != "" {
			if t, err := time.Parse("2006-01-02", v); err == nil {
				// Inclusive of the whole end day.
				end := t.Add(24*time.Hour - time.Second)
				f.To = &end
			}
		}
		page := c.QueryInt("page", 1)
		perPage := c.QueryInt("per_page", 10)
		items, total, err := svcs.Repos.Alarms.List(c.Context(), f, page, perPage)
		if err != nil {
			return failErr(c, err)
		}
		page, perPage = repository.ClampPaging(page, perPage)
		return ok(c, "ok", repository.NewPage(items, total, page, perPage))
	}
}

func listCommLogs(svcs *service.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := repository.CommLogFilter{
			Direction:  domain.Direction(c.Query("direction")),
			SourceRole: domain.DeviceRole(c.Query("source_type")),
			SourceIMEI: c.Query("source_imei"),
		}
		if sid := c.QueryInt("station_id", 0); sid > 0 {
			id := int64(sid)
			f.StationID = &id
		}
		page := c.QueryInt("page", 1)
		perPage := c.QueryInt("per_page", 20)
		items, total, err := svcs.Repos.CommLogs.List(c.Context(), f, page, perPage)
		if err != nil {
			return failErr(c, err)
		}
		page, perPage = repository.ClampPaging(page, perPage)
		return ok(c, "ok", repository.NewPage(items, total, page, perPage))
	}
}
