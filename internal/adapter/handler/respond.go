package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/oniongate/satstore/internal/core/domain"
)

// Every boundary response carries a success flag and either a payload or
// an error message. Domain failures map to 4xx; anything else is an
// infrastructure failure surfaced as a generic 500 so storage details
// never leak to the caller.

func ok(c *fiber.Ctx, payload fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(body)
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}

func failFromErr(c *fiber.Ctx, err error) error {
	switch {
	case domain.IsValidation(err):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case domain.IsNotFound(err):
		return fail(c, fiber.StatusNotFound, err.Error())
	case domain.IsAuthorization(err):
		return fail(c, fiber.StatusForbidden, err.Error())
	default:
		slog.Error("request failed", "error", err, "path", c.Path())
		return fail(c, fiber.StatusInternalServerError, "internal error")
	}
}
