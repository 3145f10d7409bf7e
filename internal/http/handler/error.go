package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"docviewer/internal/http/middleware"
	"docviewer/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if s, ok := c.Locals(middleware.RequestIDLocalKey).(string); ok {
		return s
	}
	return ""
}

// writeError writes a standardized JSON error response.
// message must be safe to show to clients.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromCtx(c),
	})
}

// serviceError maps service sentinel errors to a status and a machine code.
// Internal errors are logged and never expose their text.
func serviceError(c *fiber.Ctx, log *zap.Logger, err error) error {
	var status int
	var code string
	switch {
	case errors.Is(err, service.ErrValidation):
		status, code = fiber.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, service.ErrNotFound):
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, service.ErrConfiguration):
		status, code = fiber.StatusInternalServerError, "CONFIGURATION_ERROR"
	case errors.Is(err, service.ErrUpstream):
		status, code = fiber.StatusBadGateway, "UPSTREAM_ERROR"
	case errors.Is(err, service.ErrUnsupportedSource):
		status, code = fiber.StatusNotImplemented, "UNSUPPORTED_SOURCE"
	default:
		log.Error("request failed",
			zap.String("request_id", requestIDFromCtx(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}

	if status >= fiber.StatusInternalServerError {
		log.Warn("request failed",
			zap.String("request_id", requestIDFromCtx(c)),
			zap.String("code", code),
			zap.Error(err))
	}
	return writeError(c, status, code, err.Error())
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			return serviceError(c, log, err)
		}

		switch fe.Code {
		case fiber.StatusBadRequest:
			return writeError(c, fe.Code, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, fe.Code, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, fe.Code, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			// an oversized upload is rejected the same way whether the service or the body limit catches it
			if c.Method() == fiber.MethodPost && c.Path() == uploadPath {
				return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "validation failed: file exceeds the upload limit")
			}
			return writeError(c, fe.Code, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			if fe.Code < fiber.StatusInternalServerError {
				return writeError(c, fe.Code, "REQUEST_ERROR", fe.Message)
			}
			return writeError(c, fe.Code, "INTERNAL_ERROR", "internal server error")
		}
	}
}
