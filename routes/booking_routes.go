package routes

import (
	"github.com/anjiri1684/tutor_gateway/handlers"
	"github.com/anjiri1684/tutor_gateway/middleware"
	"github.com/anjiri1684/tutor_gateway/services"
	"github.com/gofiber/fiber/v2"
)

func BookingRoutes(app *fiber.App, h *handlers.BookingHandler, sessions *services.SessionService) {
	api := app.Group("/api/v1")

	booking := api.Group("/bookings", middleware.Protected(sessions))
	booking.Get("/me", h.MyBookings)
	booking.Post("/quote", h.Quote)
	booking.Post("", h.Create)
	booking.Get("/verify", h.Verify)
	booking.Get("/:id", h.Detail)
	booking.Post("/:id/reschedule", h.Reschedule)
}
