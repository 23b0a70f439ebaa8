package middleware

import (
	"context"

	"github.com/anjiri1684/tutor_gateway/models"
	"github.com/gofiber/fiber/v2"
)

// ActivationChecker is what the guard needs from the activation engine.
type ActivationChecker interface {
	Check(ctx context.Context, session *models.Session, force bool) (models.ActivationStatus, error)
}

// StepLock enforces forward-only onboarding traversal on /onboarding/:step
// routes. A request for any step other than the derived next one is answered
// with 303 and the route the SPA should go to instead; steps outside the
// onboarding set pass through untouched. Engine failures fail open so a
// broken check endpoint never locks a teacher out of the app.
func StepLock(engine ActivationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := SessionFromCtx(c)
		if session == nil {
			return c.Next()
		}

		step, ok := models.CanonicalStep(c.Params("step"))
		if !ok {
			return c.Next()
		}

		status, err := engine.Check(c.Context(), session, false)
		if err != nil {
			return c.Next()
		}

		next := status.NextRoute()
		if models.RouteForStep(step) == next {
			return c.Next()
		}
		return c.Status(fiber.StatusSeeOther).JSON(fiber.Map{
			"status":     "redirect",
			"next_route": next,
		})
	}
}
