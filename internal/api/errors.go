package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// errorHandler maps the error taxonomy onto status codes. Internal details
// are logged, never returned.
func errorHandler(c *fiber.Ctx, err error) error {
	var (
		verr   *common.ValidationError
		aerr   *common.AuthorizationError
		ferr   *fiber.Error
		body   errorBody
		code   int
		logger = common.Logger(c.UserContext())
	)

	switch {
	case errors.As(err, &verr):
		code = fiber.StatusBadRequest
		body = errorBody{Error: verr.Error(), Field: verr.Field}
	case errors.As(err, &aerr):
		code = fiber.StatusUnauthorized
		body = errorBody{Error: "Unauthorized"}
	case errors.Is(err, common.ErrNoTransactions):
		code = fiber.StatusNotFound
		body = errorBody{Error: "No transactions found"}
	case errors.Is(err, common.ErrNotFound):
		code = fiber.StatusNotFound
		body = errorBody{Error: "Not found"}
	case errors.As(err, &ferr):
		code = ferr.Code
		body = errorBody{Error: ferr.Message}
	default:
		code = fiber.StatusInternalServerError
		body = errorBody{Error: "Internal server error"}
	}

	if code >= fiber.StatusInternalServerError {
		logger.Error("Request failed", "status", code, "error", err)
	} else {
		logger.Debug("Request rejected", "status", code, "error", err)
	}
	return c.Status(code).JSON(body)
}
