package usercontext

import "github.com/gofiber/fiber/v2"

const (
	KeyUserContext = "USER_CONTEXT"
)

// UserContext carries the authenticated user's identity through a request.
type UserContext struct {
	UserID     uint
	Username   string
	Email      string
	IsLoggedIn bool
	IsAdmin    bool
	IsPremium  bool
}

// GetUserContext returns the user context attached by the middleware,
// or an anonymous context when none is present.
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

// SetUserContext attaches a user context to the request.
func SetUserContext(c *fiber.Ctx, ctx UserContext) {
	c.Locals(KeyUserContext, ctx)
}
