package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORS returns a Fiber handler that allows localhost origins and origins
// ending with allowedSuffix. Credentials allowed.
func CORS(allowedSuffix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		// No origin (e.g. same-origin or tools): allow
		if origin == "" {
			return c.Next()
		}
		allowed := strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") ||
			(allowedSuffix != "" && strings.HasSuffix(strings.ToLower(origin), strings.ToLower(allowedSuffix)))
		if !allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status": "error",
				"error": fiber.Map{
					"message":    "Not allowed by CORS",
					"statusCode": 403,
					"details":    fiber.Map{},
				},
			})
		}
		c.Set("Access-Control-Allow-Origin", origin)
		c.Set("Access-Control-Allow-Credentials", "true")
		c.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}
