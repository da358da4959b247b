package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/careerpilot/careerpilot/internal/pkg/usercontext"
)

// RequireAPIAuth ensures a logged-in session for API routes, responding with
// JSON 401 instead of a redirect.
func RequireAPIAuth(c *fiber.Ctx) error {
	if !usercontext.GetUserContext(c).IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireAdmin ensures a logged-in admin user.
func RequireAdmin(c *fiber.Ctx) error {
	ctx := usercontext.GetUserContext(c)
	if !ctx.IsLoggedIn || !ctx.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "forbidden",
		})
	}
	return c.Next()
}
