package routes

import (
	"github.com/anjiri1684/tutor_gateway/handlers"
	"github.com/anjiri1684/tutor_gateway/middleware"
	"github.com/anjiri1684/tutor_gateway/services"
	"github.com/gofiber/fiber/v2"
)

func ActivationRoutes(app *fiber.App, h *handlers.ActivationHandler, sessions *services.SessionService, engine *services.ActivationService) {
	api := app.Group("/api/v1")

	activation := api.Group("/activation", middleware.Protected(sessions), middleware.TeacherRequired())
	activation.Get("/status", h.Status)
	activation.Post("/activate", h.Activate)
	activation.Get("/next-route", h.NextRoute)

	onboarding := api.Group("/onboarding", middleware.Protected(sessions), middleware.TeacherRequired(), middleware.StepLock(engine))
	onboarding.Get("/:step", h.OnboardingStep)
}
