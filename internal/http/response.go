package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/snsy/gas-station-monitor/internal/domain"
)

// Envelope is the uniform response shape: {code, message, data}.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func ok(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{Code: 200, Message: message, Data: data})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{Code: status, Message: message, Data: nil})
}

// failErr maps the domain error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is a 500 with the detail kept out of the response.
func failErr(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return fail(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fail(c, fiber.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("internal error")
		return fail(c, fiber.StatusInternalServerError, "internal error")
	}
}
