package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/freecash-dev/freecash-api/internal/services"
	"github.com/freecash-dev/freecash-api/internal/store"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

// maxImportSize bounds uploaded import files.
const maxImportSize = 20 * 1024 * 1024

// ImportHandler is the single entry point for every import format: encrypted
// backups (.fcbk), workbook backups and legacy spreadsheets (.xlsx), and
// encrypted zips wrapping a workbook.
type ImportHandler struct {
	store    *store.Store
	backups  *services.BackupService
	workbook *services.WorkbookService
	legacy   *services.LegacyImportService
	reports  *services.ReportImportService
	archive  *services.ArchiveService
}

func NewImportHandler(st *store.Store, backups *services.BackupService, workbook *services.WorkbookService, legacy *services.LegacyImportService, reports *services.ReportImportService, archive *services.ArchiveService) *ImportHandler {
	return &ImportHandler{
		store:    st,
		backups:  backups,
		workbook: workbook,
		legacy:   legacy,
		reports:  reports,
		archive:  archive,
	}
}

func (h *ImportHandler) readUpload(c fiber.Ctx) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, utils.NewBadRequestError("file is required", nil)
	}
	if fh.Size > maxImportSize {
		return "", nil, utils.NewBadRequestError("file too large", nil)
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, utils.NewInternalError(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, utils.NewInternalError(err)
	}
	return fh.Filename, data, nil
}

// Import routes an uploaded file to the right importer by extension and
// content.
// POST /v1/imports (multipart: file, password?, overwrite?, mode?)
func (h *ImportHandler) Import(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	filename, data, err := h.readUpload(c)
	if err != nil {
		return err
	}
	password := c.FormValue("password")
	overwrite := c.FormValue("overwrite") == "true"

	if h.archive != nil {
		// Archiving failures never block the import itself.
		_, _ = h.archive.Store(c.Context(), userID, filename, data)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".fcbk":
		if password == "" {
			return utils.NewBadRequestError("password is required for encrypted backups", nil)
		}
		summary, err := h.backups.Restore(c.Context(), userID, string(data), password)
		if err != nil {
			return restoreErr(err)
		}
		return utils.SuccessResponse(c, summary)

	case ".zip":
		if password == "" {
			return utils.NewBadRequestError("password is required for encrypted zips", nil)
		}
		inner, err := services.UnwrapEncryptedZip(data, password)
		if err != nil {
			return utils.NewBadRequestError("could not open encrypted zip", nil)
		}
		return h.importWorkbookBytes(c, userID, inner, overwrite)

	case ".xlsx":
		if c.FormValue("mode") == "report" {
			result, err := h.reports.Import(c.Context(), userID, bytes.NewReader(data), overwrite)
			if err != nil {
				return utils.NewBadRequestError(err.Error(), nil)
			}
			return utils.SuccessResponse(c, result)
		}
		return h.importWorkbookBytes(c, userID, data, overwrite)

	default:
		return utils.NewBadRequestError(fmt.Sprintf("unsupported file type %q", filepath.Ext(filename)), nil)
	}
}

// importWorkbookBytes tells workbook backups apart from legacy spreadsheets
// by their sheet names.
func (h *ImportHandler) importWorkbookBytes(c fiber.Ctx, userID uuid.UUID, data []byte, overwrite bool) error {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return utils.NewBadRequestError("could not open workbook", nil)
	}
	isBackup := services.IsBackupWorkbook(f)
	f.Close()

	if isBackup {
		result, err := h.workbook.Import(c.Context(), userID, bytes.NewReader(data), overwrite)
		if err != nil {
			return utils.NewBadRequestError(err.Error(), nil)
		}
		return utils.SuccessResponse(c, result)
	}
	result, err := h.legacy.Import(c.Context(), userID, bytes.NewReader(data), overwrite, time.Now().UTC().Truncate(24*time.Hour))
	if err != nil {
		return utils.NewBadRequestError(err.Error(), nil)
	}
	return utils.SuccessResponse(c, result)
}

func restoreErr(err error) error {
	switch {
	case errors.Is(err, services.ErrBackupIntegrity):
		return utils.NewBadRequestError("backup artifact failed integrity check", nil)
	case errors.Is(err, services.ErrBackupPassword):
		return utils.NewBadRequestError("wrong password or corrupted backup", nil)
	default:
		return utils.NewInternalError(err)
	}
}

// Logs lists recent import attempts.
// GET /v1/imports/logs
func (h *ImportHandler) Logs(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	logs, err := h.store.ListImportLogs(c.Context(), userID, queryInt(c, "limit", 50))
	if err != nil {
		return utils.NewInternalError(err)
	}
	return utils.SuccessResponse(c, logs)
}

type exportBackupRequest struct {
	Password string `json:"password"`
}

// ExportBackup produces the encrypted .fcbk artifact.
// POST /v1/exports/backup
func (h *ImportHandler) ExportBackup(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req exportBackupRequest
	if err := c.Bind().Body(&req); err != nil {
		return utils.NewBadRequestError("invalid request body", err.Error())
	}
	if len(req.Password) < 4 {
		return utils.NewBadRequestError("password must have at least 4 characters", nil)
	}
	artifact, err := h.backups.Export(c.Context(), userID, req.Password)
	if err != nil {
		return utils.NewInternalError(err)
	}
	c.Set("Content-Disposition", `attachment; filename="freecash-backup.fcbk"`)
	c.Set("Content-Type", "application/octet-stream")
	return c.SendString(artifact)
}

// ExportWorkbook produces the xlsx flavor, optionally wrapped in an
// AES-encrypted zip when a password is given.
// GET /v1/exports/workbook?password=...
func (h *ImportHandler) ExportWorkbook(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	data, err := h.workbook.Export(c.Context(), userID)
	if err != nil {
		return utils.NewInternalError(err)
	}

	if password := c.Query("password"); password != "" {
		wrapped, err := services.WrapEncryptedZip(data, "freecash-backup.xlsx", password)
		if err != nil {
			return utils.NewInternalError(err)
		}
		c.Set("Content-Disposition", `attachment; filename="freecash-backup.zip"`)
		c.Set("Content-Type", "application/zip")
		return c.Send(wrapped)
	}

	c.Set("Content-Disposition", `attachment; filename="freecash-backup.xlsx"`)
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return c.Send(data)
}
