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

// EntryHandler serves the ledger entry CRUD and realization toggles.
type EntryHandler struct {
	store    *store.Store
	invoices *services.InvoiceService
}

func NewEntryHandler(st *store.Store, invoices *services.InvoiceService) *EntryHandler {
	return &EntryHandler{store: st, invoices: invoices}
}

type entryRequest struct {
	Kind            string `json:"kind"`
	Description     string `json:"description"`
	Amount          string `json:"amount"`
	ScheduledDate   string `json:"scheduled_date"`
	CategoryID      *int64 `json:"category_id"`
	PaymentMethodID *int64 `json:"payment_method_id"`
}

// List returns entries with optional filters.
// GET /v1/entries?kind=D&year=2024&month=3&realized=false&page=1&page_size=50
func (h *EntryHandler) List(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(c, "page_size", 50)
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	filter := store.EntryFilter{
		Kind:   models.EntryKind(c.Query("kind")),
		Year:   queryInt(c, "year", 0),
		Month:  queryInt(c, "month", 0),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	if v := c.Query("realized"); v != "" {
		realized := v == "true"
		filter.Realized = &realized
	}
	if v := c.Query("invoices"); v != "" {
		isInvoice := v == "true"
		filter.IsInvoice = &isInvoice
	}

	entries, total, err := h.store.ListEntries(c.Context(), userID, filter)
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.PaginatedResponse(c, entries, page, pageSize, int(total))
}

// Create adds a plain (non-card) entry.
// POST /v1/entries
func (h *EntryHandler) Create(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req entryRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	kind := models.EntryKind(req.Kind)
	if !kind.Valid() {
		return utils.NewBadRequestError("kind must be R, D or I", nil)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return utils.NewBadRequestError("amount must be a positive decimal", nil)
	}
	scheduled, err := parseDate(req.ScheduledDate)
	if err != nil {
		return utils.NewBadRequestError("scheduled_date must be YYYY-MM-DD", nil)
	}

	entry := &models.LedgerEntry{
		UserID:          userID,
		Kind:            kind,
		Description:     req.Description,
		Amount:          amount,
		ScheduledDate:   scheduled,
		CategoryID:      req.CategoryID,
		PaymentMethodID: req.PaymentMethodID,
	}
	if err := h.store.CreateEntry(c.Context(), entry); err != nil {
		return utils.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    entry,
	})
}

// GET /v1/entries/:id
func (h *EntryHandler) Get(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entry, err := h.store.GetEntry(c.Context(), userID, id)
	if err != nil {
		return storeErr(err, "entry")
	}
	return utils.SuccessResponse(c, entry)
}

// Update rewrites an entry. Entries frozen under a settled invoice are
// rejected.
// PUT /v1/entries/:id
func (h *EntryHandler) Update(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entry, err := h.store.GetEntry(c.Context(), userID, id)
	if err != nil {
		return storeErr(err, "entry")
	}
	if err := h.invoices.CanEditEntry(c.Context(), h.store, entry); err != nil {
		return editErr(err)
	}

	var req entryRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	if kind := models.EntryKind(req.Kind); kind.Valid() && !entry.IsInvoice {
		entry.Kind = kind
	}
	if req.Description != "" {
		entry.Description = req.Description
	}
	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || !amount.IsPositive() {
			return utils.NewBadRequestError("amount must be a positive decimal", nil)
		}
		entry.Amount = amount
	}
	if req.ScheduledDate != "" {
		scheduled, err := parseDate(req.ScheduledDate)
		if err != nil {
			return utils.NewBadRequestError("scheduled_date must be YYYY-MM-DD", nil)
		}
		entry.ScheduledDate = scheduled
	}
	if req.CategoryID != nil {
		entry.CategoryID = req.CategoryID
	}
	if req.PaymentMethodID != nil {
		entry.PaymentMethodID = req.PaymentMethodID
	}

	err = h.store.WithTx(c.Context(), func(st *store.Store) error {
		if err := st.UpdateEntry(c.Context(), entry); err != nil {
			return err
		}
		if entry.InvoiceID != nil {
			return h.invoices.RecomputeInvoice(c.Context(), st, userID, *entry.InvoiceID)
		}
		return nil
	})
	if err != nil {
		return storeErr(err, "entry")
	}
	return utils.SuccessResponse(c, entry)
}

// Delete removes an entry. Card purchases go through the invoice-aware path;
// delete_group=true extends the delete to the whole installment group.
// DELETE /v1/entries/:id?delete_group=true
func (h *EntryHandler) Delete(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entry, err := h.store.GetEntry(c.Context(), userID, id)
	if err != nil {
		return storeErr(err, "entry")
	}
	if entry.CardID != nil || entry.IsInvoice {
		deleteGroup := c.Query("delete_group") == "true"
		if err := h.invoices.DeleteCardEntry(c.Context(), userID, id, deleteGroup); err != nil {
			return editErr(err)
		}
		return utils.SuccessResponse(c, fiber.Map{"deleted": true})
	}
	if err := h.store.DeleteEntry(c.Context(), userID, id); err != nil {
		return storeErr(err, "entry")
	}
	return utils.SuccessResponse(c, fiber.Map{"deleted": true})
}

type realizeRequest struct {
	Date string `json:"date"`
}

// Realize marks a plain entry as settled.
// POST /v1/entries/:id/realize
func (h *EntryHandler) Realize(c fiber.Ctx) error {
	return h.setRealized(c, true)
}

// Unrealize reverts a settlement.
// POST /v1/entries/:id/unrealize
func (h *EntryHandler) Unrealize(c fiber.Ctx) error {
	return h.setRealized(c, false)
}

func (h *EntryHandler) setRealized(c fiber.Ctx, realized bool) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entry, err := h.store.GetEntry(c.Context(), userID, id)
	if err != nil {
		return storeErr(err, "entry")
	}
	if entry.IsInvoice {
		return utils.NewBadRequestError("invoices are settled through the pay endpoint", nil)
	}
	if err := h.invoices.CanEditEntry(c.Context(), h.store, entry); err != nil {
		return editErr(err)
	}

	var date *time.Time
	if realized {
		var req realizeRequest
		if err := c.Bind().Body(&req); err != nil && len(c.Body()) > 0 {
			return utils.NewBadRequestError("invalid request body", err.Error())
		}
		when := time.Now().UTC().Truncate(24 * time.Hour)
		if req.Date != "" {
			when, err = parseDate(req.Date)
			if err != nil {
				return utils.NewBadRequestError("date must be YYYY-MM-DD", nil)
			}
		}
		date = &when
	}
	if err := h.store.SetRealized(c.Context(), userID, id, realized, date); err != nil {
		return storeErr(err, "entry")
	}
	return utils.SuccessResponse(c, fiber.Map{"realized": realized})
}

func editErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return utils.NewNotFoundError("entry")
	case errors.Is(err, services.ErrInvoiceRealized),
		errors.Is(err, services.ErrEntryFrozen):
		return utils.NewConflictError("entry belongs to a settled invoice")
	default:
		return utils.NewInternalError(err)
	}
}
