package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/freecash-dev/freecash-api/internal/store"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

const dateLayout = "2006-01-02"

// currentUser reads the authenticated user id placed in locals by the auth
// middleware.
func currentUser(c fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals("user_id").(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, utils.NewUnauthorizedError("user not authenticated")
	}
	return userID, nil
}

func paramID(c fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, utils.NewBadRequestError("invalid id", nil)
	}
	return id, nil
}

// storeErr translates persistence errors into API errors.
func storeErr(err error, resource string) error {
	if errors.Is(err, store.ErrNotFound) {
		return utils.NewNotFoundError(resource)
	}
	return utils.NewInternalError(err)
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

func queryInt(c fiber.Ctx, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}
