package handlers

import (
	"github.com/anjiri1684/tutor_gateway/middleware"
	"github.com/anjiri1684/tutor_gateway/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ActivationHandler struct {
	engine *services.ActivationService
	log    *logrus.Logger
}

func NewActivationHandler(engine *services.ActivationService, log *logrus.Logger) *ActivationHandler {
	return &ActivationHandler{engine: engine, log: log}
}

// Status reports the normalized activation state. ?force=1 bypasses caches,
// which the SPA uses right after completing an onboarding step.
func (h *ActivationHandler) Status(c *fiber.Ctx) error {
	session := middleware.SessionFromCtx(c)
	force := c.Query("force") == "1" || c.Query("force") == "true"

	status, err := h.engine.Check(c.Context(), session, force)
	if err != nil {
		return c.Status(statusForErr(err)).JSON(fiber.Map{"error": "Could not check activation status"})
	}
	return c.JSON(fiber.Map{
		"status":     status,
		"next_route": status.NextRoute(),
	})
}

func (h *ActivationHandler) Activate(c *fiber.Ctx) error {
	session := middleware.SessionFromCtx(c)

	status, err := h.engine.Activate(c.Context(), session)
	if err != nil {
		return c.Status(statusForErr(err)).JSON(fiber.Map{"error": "Activation failed"})
	}
	return c.JSON(fiber.Map{
		"status":     status,
		"next_route": status.NextRoute(),
	})
}

func (h *ActivationHandler) NextRoute(c *fiber.Ctx) error {
	session := middleware.SessionFromCtx(c)

	route, err := h.engine.NextRoute(c.Context(), session)
	if err != nil {
		return c.Status(statusForErr(err)).JSON(fiber.Map{"error": "Could not derive next route"})
	}
	return c.JSON(fiber.Map{"next_route": route})
}

// OnboardingStep is the navigation probe behind the step lock guard: reaching
// it at all means the guard allowed the step.
func (h *ActivationHandler) OnboardingStep(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"step":    c.Params("step"),
		"allowed": true,
	})
}
