package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"

	"github.com/freecash-dev/freecash-api/internal/services"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

// RateHandler exposes PTAX reference rates and BRL conversion.
type RateHandler struct {
	rates *services.RateService
}

func NewRateHandler(rates *services.RateService) *RateHandler {
	return &RateHandler{rates: rates}
}

// Get returns the BRL rate of a currency on a given day.
// GET /v1/rates?currency=USD&date=2024-01-31
func (h *RateHandler) Get(c fiber.Ctx) error {
	currency := strings.ToUpper(strings.TrimSpace(c.Query("currency", "USD")))
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return utils.NewBadRequestError("invalid date, expected YYYY-MM-DD", nil)
		}
		day = parsed
	}

	rate, err := h.rates.Rate(c.Context(), currency, day)
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, fiber.Map{
		"currency": currency,
		"date":     day.Format("2006-01-02"),
		"rate":     rate.String(),
	})
}

// Convert converts an amount in a foreign currency to BRL.
// GET /v1/rates/convert?currency=USD&amount=10.00&date=2024-01-31
func (h *RateHandler) Convert(c fiber.Ctx) error {
	currency := strings.ToUpper(strings.TrimSpace(c.Query("currency", "USD")))
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		return utils.NewBadRequestError("invalid amount", nil)
	}
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			return utils.NewBadRequestError("invalid date, expected YYYY-MM-DD", nil)
		}
		day = parsed
	}

	converted, err := h.rates.ConvertToBRL(c.Context(), amount, currency, day)
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, fiber.Map{
		"currency":  currency,
		"amount":    amount.StringFixed(2),
		"date":      day.Format("2006-01-02"),
		"converted": converted.StringFixed(2),
	})
}
