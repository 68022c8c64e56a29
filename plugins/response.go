package plugins

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// APIResponse is the JSON envelope of every radio and profile route.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SendSuccess sends a successful response
func SendSuccess(c *fiber.Ctx, data interface{}, message string) error {
	return c.JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendError sends an error response with an explicit status.
func SendError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// SendFailure sends err with the status errorStatus picks for it.
// Server-side failures are logged.
func SendFailure(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Path(), "status", status, "error", err)
	}
	return SendError(c, status, err)
}

// SendErrorMessage sends an error response with a custom message
func SendErrorMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   message,
	})
}
