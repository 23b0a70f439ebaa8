package handlers

import (
	"errors"

	"github.com/anjiri1684/tutor_gateway/middleware"
	"github.com/anjiri1684/tutor_gateway/repository"
	"github.com/anjiri1684/tutor_gateway/services"
	"github.com/anjiri1684/tutor_gateway/upstream"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

// statusForErr maps upstream failures onto gateway responses: auth errors are
// the caller's problem, transport and payload errors are a bad gateway.
func statusForErr(err error) int {
	var apiErr *upstream.APIError
	switch {
	case errors.Is(err, upstream.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, upstream.ErrUnavailable), errors.Is(err, upstream.ErrBadPayload):
		return fiber.StatusBadGateway
	case errors.As(err, &apiErr):
		return apiErr.Status
	case errors.Is(err, repository.ErrSessionNotFound), errors.Is(err, services.ErrSessionExpired):
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

type AuthHandler struct {
	sessions   *services.SessionService
	activation *services.ActivationService
	bookings   *services.BookingService
	log        *logrus.Logger
}

func NewAuthHandler(sessions *services.SessionService, activation *services.ActivationService, bookings *services.BookingService, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, activation: activation, bookings: bookings, log: log}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	session, err := h.sessions.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
		}
		h.log.WithError(err).Error("login failed")
		return c.Status(statusForErr(err)).JSON(fiber.Map{"error": "Login failed, please try again."})
	}

	return c.JSON(fiber.Map{
		"session_token": session.Token,
		"user":          session,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	session := middleware.SessionFromCtx(c)

	h.activation.Invalidate(c.Context(), session.Token)
	h.bookings.Clear(c.Context(), session.Token)
	if err := h.sessions.Logout(c.Context(), session.Token); err != nil {
		h.log.WithError(err).Error("failed to destroy session")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to log out"})
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(middleware.SessionFromCtx(c))
}

// Refresh runs the conditional token refresh. refreshed=false with a 200
// means the session did not need one.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	session := middleware.SessionFromCtx(c)

	refreshed, err := h.sessions.RefreshIfNeeded(c.Context(), session.Token)
	if err != nil {
		return c.Status(statusForErr(err)).JSON(fiber.Map{"refreshed": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"refreshed": refreshed})
}
