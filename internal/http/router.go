package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/snsy/gas-station-monitor/internal/service"
)

func Register(app *fiber.App, svcs *service.Services) {
	api := app.Group("/api")

	api.Post("/auth/login", login(svcs))

	authed := api.Group("", requireAuth(svcs))
	authed.Post("/auth/logout", logout)
	authed.Get("/auth/me", me)

	authed.Get("/stations", listStations(svcs))
	authed.Get("/stations/stats", stationStats(svcs))
	authed.Get("/stations/:id", getStation(svcs))
	authed.Post("/stations", requireAdmin(), createStation(svcs))
	authed.Put("/stations/:id", requireAdmin(), updateStation(svcs))
	authed.Delete("/stations/:id", requireAdmin(), deleteStation(svcs))

	authed.Get("/devices", listDevices(svcs))
	authed.Post("/devices", requireAdmin(), createDevice(svcs))
	authed.Get("/devices/:imei", getDevice(svcs))
	authed.Post("/devices/:imei/bind", requireAdmin(), bindDevice(svcs))
	authed.Post("/devices/:imei/unbind", requireAdmin(), unbindDevice(svcs))

	authed.Get("/alarms", listAlarms(svcs))
	authed.Get("/comm-logs", listCommLogs(svcs))

	authed.Get("/users", requireAdmin(), listUsers(svcs))
	authed.Post("/users", requireAdmin(), createUser(svcs))
	authed.Put("/users/:id", requireAdmin(), updateUser(svcs))
	authed.Delete("/users/:id", requireAdmin(), deleteUser(svcs))
}
