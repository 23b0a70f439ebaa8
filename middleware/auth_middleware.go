package middleware

import (
	"strings"

	"github.com/anjiri1684/tutor_gateway/models"
	"github.com/anjiri1684/tutor_gateway/services"
	"github.com/gofiber/fiber/v2"
)

const sessionLocalKey = "session"

// Protected resolves the gateway bearer token to a Session and stores it in
// locals for downstream handlers.
func Protected(sessions *services.SessionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{"status": "error", "message": "Missing or malformed session token", "data": nil})
		}

		session, err := sessions.Get(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{"status": "error", "message": "Invalid or expired session", "data": nil})
		}

		c.Locals(sessionLocalKey, session)
		return c.Next()
	}
}

func TeacherRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := SessionFromCtx(c)
		if session == nil || session.Role != models.RoleTeacher {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: Teacher access required",
			})
		}
		return c.Next()
	}
}

func SessionFromCtx(c *fiber.Ctx) *models.Session {
	session, _ := c.Locals(sessionLocalKey).(*models.Session)
	return session
}
