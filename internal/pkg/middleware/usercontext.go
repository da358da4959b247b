package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/careerpilot/careerpilot/app/repository"
	"github.com/careerpilot/careerpilot/internal/pkg/session"
	"github.com/careerpilot/careerpilot/internal/pkg/usercontext"
)

// Session keys written at login time.
const (
	SessionKeyUserID    = "user_id"
	SessionKeyUserName  = "user_name"
	SessionKeyUserEmail = "user_email"
	SessionKeyIsAdmin   = "user_is_admin"
)

// UserContext resolves the session into a request-scoped user context.
// OAuth routes are skipped because goth keeps its own session store.
func UserContext(c *fiber.Ctx) error {
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	userID, ok := sess.Get(SessionKeyUserID).(uint)
	if !ok || userID == 0 {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	ctx := usercontext.UserContext{
		UserID:     userID,
		IsLoggedIn: true,
	}
	if name, ok := sess.Get(SessionKeyUserName).(string); ok {
		ctx.Username = name
	}
	if email, ok := sess.Get(SessionKeyUserEmail).(string); ok {
		ctx.Email = email
	}
	if isAdmin, ok := sess.Get(SessionKeyIsAdmin).(bool); ok {
		ctx.IsAdmin = isAdmin
	}
	if user, err := repository.GetGlobalRepositories().User.GetByID(userID); err == nil {
		ctx.IsPremium = user.IsPremium
	}

	usercontext.SetUserContext(c, ctx)
	return c.Next()
}
