package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/freecash-dev/freecash-api/internal/models"
	"github.com/freecash-dev/freecash-api/internal/store"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

// CategoryHandler serves the category CRUD.
type CategoryHandler struct {
	store *store.Store
}

func NewCategoryHandler(st *store.Store) *CategoryHandler {
	return &CategoryHandler{store: st}
}

type categoryRequest struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	IsDefault bool   `json:"is_default"`
}

// List returns all categories of the user.
// GET /v1/categories
func (h *CategoryHandler) List(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	categories, err := h.store.ListCategories(c.Context(), userID)
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, categories)
}

// Create adds a category.
// POST /v1/categories
func (h *CategoryHandler) Create(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req categoryRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	kind := models.EntryKind(req.Kind)
	if req.Name == "" || !kind.Valid() {
		return utils.NewBadRequestError("name and a valid kind are required", nil)
	}
	category := &models.Category{
		UserID:    userID,
		Name:      req.Name,
		Kind:      kind,
		IsDefault: req.IsDefault,
	}
	if err := h.store.CreateCategory(c.Context(), category); err != nil {
		return utils.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    category,
	})
}

// Update rewrites a category.
// PUT /v1/categories/:id
func (h *CategoryHandler) Update(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	category, err := h.store.GetCategory(c.Context(), userID, id)
	if err != nil {
		return storeErr(err, "category")
	}
	var req categoryRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	if req.Name != "" {
		category.Name = req.Name
	}
	if kind := models.EntryKind(req.Kind); kind.Valid() {
		category.Kind = kind
	}
	category.IsDefault = req.IsDefault
	if err := h.store.UpdateCategory(c.Context(), category); err != nil {
		return storeErr(err, "category")
	}
	return utils.SuccessResponse(c, category)
}

// Delete removes a category; entries referencing it keep existing with the
// reference cleared.
// DELETE /v1/categories/:id
func (h *CategoryHandler) Delete(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.store.DeleteCategory(c.Context(), userID, id); err != nil {
		return storeErr(err, "category")
	}
	return utils.SuccessResponse(c, fiber.Map{"deleted": true})
}
