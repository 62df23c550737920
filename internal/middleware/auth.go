package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/freecash-dev/freecash-api/internal/services"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

// RequireAuth validates the Bearer token and stores the user id in locals
// under "user_id".
func RequireAuth(auth *services.AuthService) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "missing authorization header")
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "malformed authorization header")
		}
		userID, err := auth.ParseToken(parts[1])
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "invalid or expired token")
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}
