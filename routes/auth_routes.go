package routes

import (
	"github.com/anjiri1684/tutor_gateway/handlers"
	"github.com/anjiri1684/tutor_gateway/middleware"
	"github.com/anjiri1684/tutor_gateway/services"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(app *fiber.App, h *handlers.AuthHandler, sessions *services.SessionService) {
	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/login", h.Login)
	auth.Post("/logout", middleware.Protected(sessions), h.Logout)
	auth.Get("/me", middleware.Protected(sessions), h.Me)
	auth.Post("/refresh", middleware.Protected(sessions), h.Refresh)
}
