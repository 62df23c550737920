package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"

	"github.com/freecash-dev/freecash-api/internal/models"
	"github.com/freecash-dev/freecash-api/internal/services"
	"github.com/freecash-dev/freecash-api/internal/store"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

// CardHandler serves cards, their purchases and their invoices.
type CardHandler struct {
	store    *store.Store
	invoices *services.InvoiceService
}

func NewCardHandler(st *store.Store, invoices *services.InvoiceService) *CardHandler {
	return &CardHandler{store: st, invoices: invoices}
}

type cardRequest struct {
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	LastDigits string `json:"last_digits"`
	Limit      string `json:"limit"`
	ClosingDay int    `json:"closing_day"`
	DueDay     int    `json:"due_day"`
	Active     *bool  `json:"active"`
}

func validDay(d int) bool { return d >= 1 && d <= 31 }

// GET /v1/cards
func (h *CardHandler) List(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	cards, err := h.store.ListCards(c.Context(), userID)
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, cards)
}

// POST /v1/cards
func (h *CardHandler) Create(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req cardRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	if req.Name == "" || !validDay(req.ClosingDay) || !validDay(req.DueDay) {
		return utils.NewBadRequestError("name, closing_day and due_day (1..31) are required", nil)
	}
	card := &models.Card{
		UserID:     userID,
		Name:       req.Name,
		Brand:      req.Brand,
		LastDigits: req.LastDigits,
		ClosingDay: req.ClosingDay,
		DueDay:     req.DueDay,
		Active:     true,
	}
	if req.Brand == "" {
		card.Brand = "OUTRO"
	}
	if req.Limit != "" {
		limit, err := decimal.NewFromString(req.Limit)
		if err != nil {
			return utils.NewBadRequestError("invalid limit", nil)
		}
		card.Limit = &limit
	}
	if req.Active != nil {
		card.Active = *req.Active
	}
	if err := h.store.CreateCard(c.Context(), card); err != nil {
		return utils.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    card,
	})
}

// PUT /v1/cards/:id
func (h *CardHandler) Update(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	card, err := h.store.GetCard(c.Context(), userID, id)
	if err != nil {
		return storeErr(err, "card")
	}
	var req cardRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	if req.Name != "" {
		card.Name = req.Name
	}
	if req.Brand != "" {
		card.Brand = req.Brand
	}
	if req.LastDigits != "" {
		card.LastDigits = req.LastDigits
	}
	if req.Limit != "" {
		limit, err := decimal.NewFromString(req.Limit)
		if err != nil {
			return utils.NewBadRequestError("invalid limit", nil)
		}
		card.Limit = &limit
	}
	if validDay(req.ClosingDay) {
		card.ClosingDay = req.ClosingDay
	}
	if validDay(req.DueDay) {
		card.DueDay = req.DueDay
	}
	if req.Active != nil {
		card.Active = *req.Active
	}
	if err := h.store.UpdateCard(c.Context(), card); err != nil {
		return storeErr(err, "card")
	}
	return utils.SuccessResponse(c, card)
}

// DELETE /v1/cards/:id
func (h *CardHandler) Delete(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.store.DeleteCard(c.Context(), userID, id); err != nil {
		return storeErr(err, "card")
	}
	return utils.SuccessResponse(c, fiber.Map{"deleted": true})
}

type purchaseRequest struct {
	Description  string  `json:"description"`
	Amount       string  `json:"amount"`
	PurchaseDate string  `json:"purchase_date"`
	CategoryID   *int64  `json:"category_id"`
	CardCategory *string `json:"card_category"`
	Installments int     `json:"installments"`
}

// CreatePurchase records a card purchase, split into installments when
// installments >= 2.
// POST /v1/cards/:id/purchases
func (h *CardHandler) CreatePurchase(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	cardID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req purchaseRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return utils.NewBadRequestError("amount must be a positive decimal", nil)
	}
	purchaseDate, err := parseDate(req.PurchaseDate)
	if err != nil {
		return utils.NewBadRequestError("purchase_date must be YYYY-MM-DD", nil)
	}
	if req.Description == "" {
		return utils.NewBadRequestError("description is required", nil)
	}

	input := services.PurchaseInput{
		CardID:       cardID,
		Description:  req.Description,
		Amount:       amount,
		PurchaseDate: purchaseDate,
		CategoryID:   req.CategoryID,
		CardCategory: req.CardCategory,
		Installments: req.Installments,
	}

	if req.Installments >= 2 {
		entries, err := h.invoices.SplitPurchase(c.Context(), userID, input)
		if err != nil {
			return purchaseErr(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"data":    entries,
		})
	}

	entry, err := h.invoices.CreatePurchase(c.Context(), userID, input)
	if err != nil {
		return purchaseErr(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    entry,
	})
}

func purchaseErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return utils.NewNotFoundError("card")
	case errors.Is(err, services.ErrInvoiceRealized):
		return utils.NewConflictError("invoice already settled")
	case errors.Is(err, services.ErrInstallmentCount):
		return utils.NewBadRequestError("installments must be between 2 and 24", nil)
	default:
		return utils.NewInternalError(err)
	}
}

// GetInvoice returns a card's invoice for a month together with its
// purchases.
// GET /v1/cards/:id/invoices?year=2024&month=3
func (h *CardHandler) GetInvoice(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	cardID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	now := time.Now()
	year := queryInt(c, "year", now.Year())
	month := queryInt(c, "month", int(now.Month()))
	if month < 1 || month > 12 {
		return utils.NewBadRequestError("month must be 1..12", nil)
	}

	invoice, err := h.store.FindInvoice(c.Context(), userID, cardID, year, month)
	if err != nil {
		return storeErr(err, "invoice")
	}
	children, err := h.store.ListInvoiceChildren(c.Context(), invoice.ID)
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, fiber.Map{
		"invoice": invoice,
		"entries": children,
	})
}

type payInvoiceRequest struct {
	Date string `json:"date"`
}

// PayInvoice settles an invoice and all its purchases.
// POST /v1/invoices/:id/pay
func (h *CardHandler) PayInvoice(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req payInvoiceRequest
	if err := c.Bind().Body(&req); err != nil && len(c.Body()) > 0 {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		date, err = parseDate(req.Date)
		if err != nil {
			return utils.NewBadRequestError("date must be YYYY-MM-DD", nil)
		}
	}
	if err := h.invoices.PayInvoice(c.Context(), userID, id, date); err != nil {
		return invoiceErr(err)
	}
	return utils.SuccessResponse(c, fiber.Map{"paid": true})
}

// UnpayInvoice reverts a settlement, unmarking the invoice and every
// purchase under it.
// POST /v1/invoices/:id/unpay
func (h *CardHandler) UnpayInvoice(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.invoices.UnpayInvoice(c.Context(), userID, id); err != nil {
		return invoiceErr(err)
	}
	return utils.SuccessResponse(c, fiber.Map{"paid": false})
}

func invoiceErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return utils.NewNotFoundError("invoice")
	case errors.Is(err, services.ErrNotAnInvoice):
		return utils.NewBadRequestError("entry is not an invoice", nil)
	case errors.Is(err, services.ErrInvoiceRealized):
		return utils.NewConflictError("invoice already settled")
	case errors.Is(err, services.ErrInvoiceNotRealized):
		return utils.NewConflictError("invoice is not settled")
	default:
		return utils.NewInternalError(err)
	}
}
