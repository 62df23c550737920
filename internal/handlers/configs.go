package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/freecash-dev/freecash-api/internal/store"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

// ConfigHandler reads and updates per-user settings.
type ConfigHandler struct {
	store *store.Store
}

func NewConfigHandler(st *store.Store) *ConfigHandler {
	return &ConfigHandler{store: st}
}

// Get returns the caller's settings, creating defaults on first access.
// GET /v1/config
func (h *ConfigHandler) Get(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	cfg, err := h.store.GetOrCreateConfig(c.Context(), userID)
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, cfg)
}

type updateConfigRequest struct {
	DefaultCurrency string `json:"default_currency"`
}

// Update changes the caller's settings.
// PUT /v1/config
func (h *ConfigHandler) Update(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req updateConfigRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	currency := strings.ToUpper(strings.TrimSpace(req.DefaultCurrency))
	if len(currency) != 3 {
		return utils.NewBadRequestError("default_currency must be a 3-letter code", nil)
	}

	cfg, err := h.store.GetOrCreateConfig(c.Context(), userID)
	if err != nil {
		return utils.NewInternalError(err)
	}
	cfg.DefaultCurrency = currency
	if err := h.store.UpdateConfig(c.Context(), cfg); err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, cfg)
}
