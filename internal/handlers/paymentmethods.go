package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/freecash-dev/freecash-api/internal/models"
	"github.com/freecash-dev/freecash-api/internal/store"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

// PaymentMethodHandler serves the payment method CRUD.
type PaymentMethodHandler struct {
	store *store.Store
}

func NewPaymentMethodHandler(st *store.Store) *PaymentMethodHandler {
	return &PaymentMethodHandler{store: st}
}

type paymentMethodRequest struct {
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

// GET /v1/payment-methods
func (h *PaymentMethodHandler) List(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	methods, err := h.store.ListPaymentMethods(c.Context(), userID)
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, methods)
}

// POST /v1/payment-methods
func (h *PaymentMethodHandler) Create(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req paymentMethodRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	if req.Name == "" {
		return utils.NewBadRequestError("name is required", nil)
	}
	method := &models.PaymentMethod{UserID: userID, Name: req.Name, Active: true}
	if req.Active != nil {
		method.Active = *req.Active
	}
	if err := h.store.CreatePaymentMethod(c.Context(), method); err != nil {
		return utils.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    method,
	})
}

// PUT /v1/payment-methods/:id
func (h *PaymentMethodHandler) Update(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	method, err := h.store.GetPaymentMethod(c.Context(), userID, id)
	if err != nil {
		return storeErr(err, "payment method")
	}
	var req paymentMethodRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	if req.Name != "" {
		method.Name = req.Name
	}
	if req.Active != nil {
		method.Active = *req.Active
	}
	if err := h.store.UpdatePaymentMethod(c.Context(), method); err != nil {
		return storeErr(err, "payment method")
	}
	return utils.SuccessResponse(c, method)
}

// DELETE /v1/payment-methods/:id
func (h *PaymentMethodHandler) Delete(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.store.DeletePaymentMethod(c.Context(), userID, id); err != nil {
		return storeErr(err, "payment method")
	}
	return utils.SuccessResponse(c, fiber.Map{"deleted": true})
}
