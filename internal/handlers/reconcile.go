package handlers

import (
	"bytes"
	"errors"
	"io"

	"github.com/gofiber/fiber/v3"

	"github.com/freecash-dev/freecash-api/internal/services"
	"github.com/freecash-dev/freecash-api/internal/store"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

// maxStatementSize bounds uploaded statement PDFs.
const maxStatementSize = 10 * 1024 * 1024

// StatementHandler drives bank statement reconciliation: upload, review
// staged lines, confirm or discard each one.
type StatementHandler struct {
	store      *store.Store
	statements *services.StatementService
}

func NewStatementHandler(st *store.Store, statements *services.StatementService) *StatementHandler {
	return &StatementHandler{store: st, statements: statements}
}

// Upload parses a statement PDF and stages its movements.
// POST /v1/statements (multipart: file, bank?)
func (h *StatementHandler) Upload(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return utils.NewBadRequestError("file is required", nil)
	}
	if fh.Size > maxStatementSize {
		return utils.NewBadRequestError("file too large", nil)
	}
	f, err := fh.Open()
	if err != nil {
		return utils.NewInternalError(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return utils.NewInternalError(err)
	}

	si, lines, err := h.statements.ImportPDF(c.Context(), userID, fh.Filename, c.FormValue("bank"), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return utils.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"import": si,
			"lines":  lines,
		},
	})
}

// List lists past statement imports.
// GET /v1/statements
func (h *StatementHandler) List(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	imports, err := h.store.ListStatementImports(c.Context(), userID)
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, imports)
}

// Lines lists the staged lines of one import.
// GET /v1/statements/:id/lines
func (h *StatementHandler) Lines(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.store.GetStatementImport(c.Context(), userID, id); err != nil {
		return storeErr(err, "statement import")
	}
	lines, err := h.store.ListStatementLines(c.Context(), userID, id)
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, lines)
}

type confirmLineRequest struct {
	CategoryID      *int64 `json:"category_id"`
	PaymentMethodID *int64 `json:"payment_method_id"`
}

// Confirm turns a staged line into a realized ledger entry.
// POST /v1/statements/lines/:id/confirm
func (h *StatementHandler) Confirm(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req confirmLineRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	entry, err := h.statements.ConfirmLine(c.Context(), userID, id, services.ConfirmOptions{
		CategoryID:      req.CategoryID,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		return lineErr(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    entry,
	})
}

// Discard marks a staged line as ignored.
// POST /v1/statements/lines/:id/discard
func (h *StatementHandler) Discard(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.statements.DiscardLine(c.Context(), userID, id); err != nil {
		return lineErr(err)
	}
	return utils.SuccessResponse(c, fiber.Map{"discarded": true})
}

func lineErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return utils.NewNotFoundError("statement line")
	case errors.Is(err, services.ErrLineSettled):
		return utils.NewConflictError("statement line already settled")
	default:
		return utils.NewInternalError(err)
	}
}
