package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/careerpilot/careerpilot/app/controllers"
	"github.com/careerpilot/careerpilot/internal/pkg/middleware"
	"github.com/careerpilot/careerpilot/internal/pkg/oauth"
	"github.com/careerpilot/careerpilot/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContext)

	h.registerAuthRoutes(app)
	h.registerWebhookRoutes(app)
}

func (h HttpRouter) registerAuthRoutes(app *fiber.App) {
	app.Post("/register", controllers.HandleRegister)
	app.Post("/login", controllers.HandleLogin)
	app.Post("/logout", controllers.HandleLogout)

	// OAuth (goth keeps its own session store, UserContext skips these paths)
	app.Get("/auth/:provider", controllers.HandleOAuthLogin)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)
}

func (h HttpRouter) registerWebhookRoutes(app *fiber.App) {
	// Webhooks authenticate by signature, never by session.
	app.Post("/webhook/billing", controllers.HandleBillingWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
