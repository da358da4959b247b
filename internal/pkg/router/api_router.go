package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/careerpilot/careerpilot/app/controllers"
	"github.com/careerpilot/careerpilot/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "CareerPilot API",
		})
	})

	v1 := api.Group("/v1", middleware.RequireAPIAuth)

	v1.Get("/me", controllers.HandleGetAccount)
	v1.Get("/me/quota", controllers.HandleGetQuota)

	v1.Post("/profiles", controllers.HandleCreateProfile)
	v1.Get("/profiles", controllers.HandleListProfiles)
	v1.Get("/profiles/:id", controllers.HandleGetProfile)
	v1.Put("/profiles/:id", controllers.HandleUpdateProfile)
	v1.Delete("/profiles/:id", controllers.HandleDeleteProfile)

	v1.Post("/resumes", controllers.HandleCreateResume)
	v1.Get("/resumes", controllers.HandleListResumes)
	v1.Get("/resumes/:id", controllers.HandleGetResume)
	v1.Put("/resumes/:id", controllers.HandleUpdateResume)
	v1.Delete("/resumes/:id", controllers.HandleDeleteResume)

	v1.Post("/opportunities", controllers.HandleCreateOpportunity)
	v1.Get("/opportunities", controllers.HandleListOpportunities)
	v1.Get("/opportunities/:id", controllers.HandleGetOpportunity)
	v1.Put("/opportunities/:id", controllers.HandleUpdateOpportunity)
	v1.Delete("/opportunities/:id", controllers.HandleDeleteOpportunity)

	v1.Post("/recruiters", controllers.HandleCreateRecruiter)
	v1.Get("/recruiters", controllers.HandleListRecruiters)
	v1.Get("/recruiters/:id", controllers.HandleGetRecruiter)
	v1.Put("/recruiters/:id", controllers.HandleUpdateRecruiter)
	v1.Delete("/recruiters/:id", controllers.HandleDeleteRecruiter)

	v1.Post("/generate", controllers.HandleGenerate)
	v1.Get("/interactions", controllers.HandleListInteractions)

	v1.Get("/admin/stats", middleware.RequireAdmin, controllers.HandleAdminStats)

	v1.Post("/billing/checkout", controllers.HandleCreateCheckout)
	v1.Post("/billing/cancel", controllers.HandleCancelSubscription)
	v1.Get("/billing/plan", controllers.HandleGetPlanStatus)
	v1.Get("/billing/history", controllers.HandleListPlanHistory)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
