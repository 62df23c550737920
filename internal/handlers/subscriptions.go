package handlers

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"

	"github.com/freecash-dev/freecash-api/internal/models"
	"github.com/freecash-dev/freecash-api/internal/services"
	"github.com/freecash-dev/freecash-api/internal/store"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

// SubscriptionHandler serves the subscription CRUD and the generation
// trigger.
type SubscriptionHandler struct {
	store         *store.Store
	subscriptions *services.SubscriptionService
}

func NewSubscriptionHandler(st *store.Store, subs *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{store: st, subscriptions: subs}
}

type subscriptionRequest struct {
	Description     string `json:"description"`
	Amount          string `json:"amount"`
	Kind            string `json:"kind"`
	DueDay          int    `json:"due_day"`
	CategoryID      *int64 `json:"category_id"`
	PaymentMethodID *int64 `json:"payment_method_id"`
	CardID          *int64 `json:"card_id"`
	Active          *bool  `json:"active"`
	NextGeneration  string `json:"next_generation"`
}

// GET /v1/subscriptions
func (h *SubscriptionHandler) List(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	subs, err := h.store.ListSubscriptions(c.Context(), userID)
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, subs)
}

// POST /v1/subscriptions
func (h *SubscriptionHandler) Create(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req subscriptionRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	kind := models.EntryKind(req.Kind)
	if !kind.Valid() {
		kind = models.KindExpense
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return utils.NewBadRequestError("amount must be a positive decimal", nil)
	}
	if req.Description == "" || req.DueDay < 1 || req.DueDay > 31 {
		return utils.NewBadRequestError("description and due_day (1..31) are required", nil)
	}

	next := time.Now().UTC().Truncate(24 * time.Hour)
	if req.NextGeneration != "" {
		next, err = parseDate(req.NextGeneration)
		if err != nil {
			return utils.NewBadRequestError("next_generation must be YYYY-MM-DD", nil)
		}
	}

	sub := &models.Subscription{
		UserID:          userID,
		Description:     req.Description,
		Amount:          amount,
		Kind:            kind,
		DueDay:          req.DueDay,
		CategoryID:      req.CategoryID,
		PaymentMethodID: req.PaymentMethodID,
		CardID:          req.CardID,
		Active:          true,
		NextGeneration:  next,
	}
	if req.Active != nil {
		sub.Active = *req.Active
	}
	if err := h.store.CreateSubscription(c.Context(), sub); err != nil {
		return utils.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    sub,
	})
}

// PUT /v1/subscriptions/:id
func (h *SubscriptionHandler) Update(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	sub, err := h.store.GetSubscription(c.Context(), userID, id)
	if err != nil {
		return storeErr(err, "subscription")
	}
	var req subscriptionRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	if req.Description != "" {
		sub.Description = req.Description
	}
	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil || !amount.IsPositive() {
			return utils.NewBadRequestError("amount must be a positive decimal", nil)
		}
		sub.Amount = amount
	}
	if kind := models.EntryKind(req.Kind); kind.Valid() {
		sub.Kind = kind
	}
	if req.DueDay >= 1 && req.DueDay <= 31 {
		sub.DueDay = req.DueDay
	}
	if req.CategoryID != nil {
		sub.CategoryID = req.CategoryID
	}
	if req.PaymentMethodID != nil {
		sub.PaymentMethodID = req.PaymentMethodID
	}
	if req.CardID != nil {
		sub.CardID = req.CardID
	}
	if req.Active != nil {
		sub.Active = *req.Active
	}
	if req.NextGeneration != "" {
		next, err := parseDate(req.NextGeneration)
		if err != nil {
			return utils.NewBadRequestError("next_generation must be YYYY-MM-DD", nil)
		}
		sub.NextGeneration = next
	}
	if err := h.store.UpdateSubscription(c.Context(), sub); err != nil {
		return storeErr(err, "subscription")
	}
	return utils.SuccessResponse(c, sub)
}

// DELETE /v1/subscriptions/:id
func (h *SubscriptionHandler) Delete(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.store.DeleteSubscription(c.Context(), userID, id); err != nil {
		return storeErr(err, "subscription")
	}
	return utils.SuccessResponse(c, fiber.Map{"deleted": true})
}

// Generate materializes one cycle for every subscription whose next
// generation date has arrived.
// POST /v1/subscriptions/generate
func (h *SubscriptionHandler) Generate(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	created, err := h.subscriptions.GenerateDueEntries(c.Context(), userID, time.Now().UTC())
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, fiber.Map{
		"generated": len(created),
		"entries":   created,
	})
}
