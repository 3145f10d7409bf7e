package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the header used to propagate request IDs.
	RequestIDHeader = "X-Request-ID"
	// RequestIDLocalKey is the Fiber locals key holding the request ID.
	RequestIDLocalKey = "request_id"
	// maxRequestIDLen bounds client supplied IDs before they reach logs.
	maxRequestIDLen = 128
)

// RequestID ensures every request has an ID.
//
// Behavior:
// - Reads X-Request-ID from the incoming request header.
// - Generates a new UUID if it is missing or longer than 128 bytes.
// - Stores the value in Fiber locals under RequestIDLocalKey and echoes it in the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		} else {
			// header values alias the request buffer
			id = utils.CopyString(id)
		}

		c.Locals(RequestIDLocalKey, id)
		c.Set(RequestIDHeader, id)

		return c.Next()
	}
}
