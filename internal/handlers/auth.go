package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/freecash-dev/freecash-api/internal/services"
	"github.com/freecash-dev/freecash-api/internal/store"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	auth  *services.AuthService
	store *store.Store
}

func NewAuthHandler(auth *services.AuthService, st *store.Store) *AuthHandler {
	return &AuthHandler{auth: auth, store: st}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account.
// POST /v1/auth/register
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var req registerRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	user, err := h.auth.Register(c.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return utils.NewBadRequestError(err.Error(), nil)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for an access token.
// POST /v1/auth/login
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req loginRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	token, user, err := h.auth.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return utils.NewUnauthorizedError("invalid username or password")
		}
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Me returns the authenticated user.
// GET /v1/me
func (h *AuthHandler) Me(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.store.GetUser(c.Context(), userID)
	if err != nil {
		return storeErr(err, "user")
	}
	return utils.SuccessResponse(c, user)
}
