package middleware

import (
	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

// RequireRole rejects users whose global role is below required
func RequireRole(required models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := Claims(c)
		if claims == nil {
			return apperr.Respond(c, apperr.Unauthorized("authentication required"))
		}

		if !models.HasMinimumRole(models.Role(claims.Role), required) {
			return apperr.Respond(c, apperr.InsufficientRole(string(required), claims.Role))
		}

		return c.Next()
	}
}
