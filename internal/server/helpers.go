package server

import (
	"log/slog"
	"strings"

	"nerdtalk/internal/middleware"
	"nerdtalk/internal/models"

	"github.com/gofiber/fiber/v2"
)

// respondError writes err with the status its code maps to. Server-side
// failures are logged with the request context.
func respondError(c *fiber.Ctx, err error) error {
	status := models.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("code", models.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

// pathID returns the trimmed route parameter or a validation error.
func pathID(c *fiber.Ctx, param string) (string, error) {
	id := strings.TrimSpace(c.Params(param))
	if id == "" {
		return "", models.NewValidationError("Invalid " + param)
	}
	return id, nil
}

// currentUserID returns the internal id set by AuthRequired, or "".
func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

func currentExternalID(c *fiber.Ctx) string {
	id, _ := c.Locals("externalID").(string)
	return id
}

// bodyError is returned when a request body cannot be decoded.
func bodyError() error {
	return models.NewValidationError("Invalid request body")
}
