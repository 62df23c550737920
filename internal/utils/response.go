package utils

import "github.com/gofiber/fiber/v3"

// SuccessResponse wraps a payload in the {success, data} envelope every
// endpoint returns.
func SuccessResponse(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// ErrorResponse sends the error envelope with the given status. Handlers
// normally return an APIError instead; this is for middleware that replies
// before the error handler runs.
func ErrorResponse(c fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// PaginatedResponse adds page bookkeeping to the success envelope, used by
// the entry listing.
func PaginatedResponse(c fiber.Ctx, data any, page, pageSize, total int) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
			"pages":     (total + pageSize - 1) / pageSize,
		},
	})
}
