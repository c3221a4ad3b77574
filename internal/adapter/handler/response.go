// Package handler is the HTTP collaborator layer: parse the request, call the
// core, map the error kind to a status. No business rules live here.
package handler

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/goledger/internal/core/domain"
)

// writeError maps a domain error kind to an HTTP status and renders the
// message unmodified, so callers see exactly what the core said.
func writeError(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInternal):
		status = http.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
