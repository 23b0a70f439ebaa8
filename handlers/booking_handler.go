package handlers

import (
	"time"

	"github.com/anjiri1684/tutor_gateway/middleware"
	"github.com/anjiri1684/tutor_gateway/models"
	"github.com/anjiri1684/tutor_gateway/services"
	"github.com/anjiri1684/tutor_gateway/upstream"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type BookingHandler struct {
	svc *services.BookingService
	log *logrus.Logger
}

func NewBookingHandler(svc *services.BookingService, log *logrus.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, log: log}
}

type QuoteRequest struct {
	AvailabilityIDs []string `json:"availability_ids" validate:"required,min=1"`
}

func (h *BookingHandler) Quote(c *fiber.Ctx) error {
	session := middleware.SessionFromCtx(c)

	var req QuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	quote, err := h.svc.Quote(c.Context(), session, req.AvailabilityIDs)
	if err != nil {
		return c.Status(statusForErr(err)).JSON(fiber.Map{"error": "Could not price the selected slots"})
	}
	return c.JSON(fiber.Map{"quote": quote})
}

type CreateBookingRequest struct {
	AvailabilityIDs []string `json:"availability_ids" validate:"required,min=1"`
	PriceID         int      `json:"price_id" validate:"required"`
	TeacherName     string   `json:"teacher_name,omitempty"`
	Subject         string   `json:"subject,omitempty"`
}

func (h *BookingHandler) Create(c *fiber.Ctx) error {
	session := middleware.SessionFromCtx(c)

	var req CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	checkout, err := h.svc.Create(c.Context(), session, services.CreateBookingInput{
		AvailabilityIDs: req.AvailabilityIDs,
		PriceID:         req.PriceID,
		TeacherName:     req.TeacherName,
		Subject:         req.Subject,
	})
	if err != nil {
		h.log.WithError(err).Error("booking create failed")
		return c.Status(statusForErr(err)).JSON(fiber.Map{"error": "Payment could not be initiated, please try again."})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"url":        checkout.URL,
		"session_id": checkout.SessionID,
		"price":      checkout.Price,
	})
}

// Verify is hit by the SPA's payment-return page with the checkout session id
// it found in the URL. Repeat calls with the same id are answered from the
// recorded outcome.
func (h *BookingHandler) Verify(c *fiber.Ctx) error {
	session := middleware.SessionFromCtx(c)

	checkoutSessionID := c.Query("session_id")
	if checkoutSessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_id is required"})
	}

	conf, err := h.svc.VerifyReturn(c.Context(), session, checkoutSessionID)
	if err != nil {
		h.log.WithError(err).Warn("booking verification failed")
		return c.Status(statusForErr(err)).JSON(fiber.Map{"confirmation": conf})
	}
	return c.JSON(fiber.Map{"confirmation": conf})
}

func (h *BookingHandler) Detail(c *fiber.Ctx) error {
	session := middleware.SessionFromCtx(c)

	booking, err := h.svc.Detail(c.Context(), session, c.Params("id"))
	if err != nil {
		return c.Status(statusForErr(err)).JSON(fiber.Map{"error": "Booking not found"})
	}
	return c.JSON(fiber.Map{"booking": booking})
}

func (h *BookingHandler) MyBookings(c *fiber.Ctx) error {
	session := middleware.SessionFromCtx(c)

	bookings, err := h.svc.List(c.Context(), session)
	if err != nil {
		return c.Status(statusForErr(err)).JSON(fiber.Map{"error": "Could not load bookings"})
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return c.JSON(fiber.Map{"bookings": bookings})
}

type RescheduleRequest struct {
	StartTime string `json:"proposed_start_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime   string `json:"proposed_end_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Reason    string `json:"reason,omitempty"`
}

func (h *BookingHandler) Reschedule(c *fiber.Ctx) error {
	session := middleware.SessionFromCtx(c)

	var req RescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	start, _ := time.Parse(time.RFC3339, req.StartTime)
	end, _ := time.Parse(time.RFC3339, req.EndTime)
	if !start.Before(end) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Start time must be before end time"})
	}

	err := h.svc.Reschedule(c.Context(), session, c.Params("id"), upstream.RescheduleRequest{
		StartTime: start,
		EndTime:   end,
		Reason:    req.Reason,
	})
	if err != nil {
		return c.Status(statusForErr(err)).JSON(fiber.Map{"error": "Could not request reschedule"})
	}
	return c.JSON(fiber.Map{"message": "Reschedule requested"})
}
