package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"github.com/yeka/zip"
	"go.uber.org/zap"

	"github.com/freecash-dev/freecash-api/internal/models"
	"github.com/freecash-dev/freecash-api/internal/store"
)

// Sheet names of the workbook backup format.
const (
	sheetMetadata       = "metadata"
	sheetEntries        = "contas"
	sheetCategories     = "categorias"
	sheetPaymentMethods = "formas_pagamento"
	sheetConfig         = "configuracoes"
)

// WorkbookService reads and writes the spreadsheet flavor of backups: plain
// xlsx, optionally wrapped in an AES-encrypted zip.
type WorkbookService struct {
	store *store.Store
	log   *zap.Logger
}

func NewWorkbookService(st *store.Store, log *zap.Logger) *WorkbookService {
	return &WorkbookService{store: st, log: log}
}

// workbookExportable reports whether an entry row goes into the contas
// sheet. Derived invoice rows are totals of their children and are left out;
// the purchases under them export as plain rows. Card and invoice linkage
// round-trips only through the encrypted backup format.
func workbookExportable(e *models.LedgerEntry) bool {
	return !e.IsInvoice
}

// IsBackupWorkbook reports whether an opened workbook carries the backup
// sheet set, as opposed to a legacy year-per-sheet spreadsheet.
func IsBackupWorkbook(f *excelize.File) bool {
	names := map[string]bool{}
	for _, n := range f.GetSheetList() {
		names[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return names[sheetEntries] && names[sheetCategories]
}

func setRow(f *excelize.File, sheet string, rowIdx int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// Export builds the workbook backup for a user.
func (s *WorkbookService) Export(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetMetadata); err != nil {
		return nil, err
	}
	for _, sheet := range []string{sheetCategories, sheetPaymentMethods, sheetEntries, sheetConfig} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}

	meta := [][]any{
		{"chave", "valor"},
		{"version", BackupVersion},
		{"generated_at", time.Now().UTC().Format(time.RFC3339)},
		{"username", user.Username},
	}
	for i, row := range meta {
		if err := setRow(f, sheetMetadata, i+1, row); err != nil {
			return nil, err
		}
	}

	categories, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := setRow(f, sheetCategories, 1, []any{"id", "uuid", "nome", "tipo", "padrao"}); err != nil {
		return nil, err
	}
	for i, c := range categories {
		row := []any{c.ID, c.UUID.String(), c.Name, string(c.Kind), c.IsDefault}
		if err := setRow(f, sheetCategories, i+2, row); err != nil {
			return nil, err
		}
	}

	methods, err := s.store.ListPaymentMethods(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := setRow(f, sheetPaymentMethods, 1, []any{"id", "uuid", "nome", "ativo"}); err != nil {
		return nil, err
	}
	for i, m := range methods {
		row := []any{m.ID, m.UUID.String(), m.Name, m.Active}
		if err := setRow(f, sheetPaymentMethods, i+2, row); err != nil {
			return nil, err
		}
	}

	entries, err := s.store.ListUserEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	header := []any{"id", "uuid", "tipo", "descricao", "valor",
		"data_vencimento", "realizado", "data_realizacao", "categoria_id",
		"forma_pagamento_id"}
	if err := setRow(f, sheetEntries, 1, header); err != nil {
		return nil, err
	}
	rowIdx := 2
	for _, e := range entries {
		if !workbookExportable(e) {
			continue
		}
		realizedAt := ""
		if e.RealizedDate != nil {
			realizedAt = e.RealizedDate.Format(backupDateLayout)
		}
		row := []any{
			e.ID, e.UUID.String(), string(e.Kind), e.Description,
			e.Amount.StringFixed(2),
			e.ScheduledDate.Format(backupDateLayout),
			e.Realized, realizedAt,
			int64Cell(e.CategoryID), int64Cell(e.PaymentMethodID),
		}
		if err := setRow(f, sheetEntries, rowIdx, row); err != nil {
			return nil, err
		}
		rowIdx++
	}

	cfg, err := s.store.GetOrCreateConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := setRow(f, sheetConfig, 1, []any{"chave", "valor"}); err != nil {
		return nil, err
	}
	if err := setRow(f, sheetConfig, 2, []any{"moeda_padrao", cfg.DefaultCurrency}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func int64Cell(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}

// Import loads a workbook backup. Categories and payment methods resolve by
// name against existing rows; entries get fresh ids and remapped foreign
// keys, so the workbook's old ids never leak into the database.
func (s *WorkbookService) Import(ctx context.Context, userID uuid.UUID, r io.Reader, overwrite bool) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	if !IsBackupWorkbook(f) {
		return nil, fmt.Errorf("workbook is not a backup")
	}

	result := &ImportResult{}
	err = s.store.WithTx(ctx, func(st *store.Store) error {
		if err := st.AcquireImportLock(ctx); err != nil {
			return err
		}
		if overwrite {
			if err := st.DeleteUserEntries(ctx, userID); err != nil {
				return err
			}
		}

		catMap, err := s.importCategorySheet(ctx, st, userID, f)
		if err != nil {
			return err
		}
		pmMap, err := s.importPaymentMethodSheet(ctx, st, userID, f)
		if err != nil {
			return err
		}
		if err := s.importEntrySheet(ctx, st, userID, f, catMap, pmMap, overwrite, result); err != nil {
			return err
		}
		return s.importConfigSheet(ctx, st, userID, f)
	})

	logErr := s.store.AppendImportLog(ctx, &models.ImportLog{
		UserID:  userID,
		Source:  models.ImportSourceBackup,
		Success: err == nil,
		Message: importLogMessage(err, fmt.Sprintf("workbook: created %d, updated %d, skipped %d", result.Created, result.Updated, result.Skipped)),
	})
	if err != nil {
		return nil, err
	}
	if logErr != nil {
		return nil, logErr
	}
	s.log.Info("workbook imported",
		zap.String("user_id", userID.String()),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// importCategorySheet returns a map from the workbook's old ids to local
// ones.
func (s *WorkbookService) importCategorySheet(ctx context.Context, st *store.Store, userID uuid.UUID, f *excelize.File) (map[int64]int64, error) {
	rows, err := f.GetRows(sheetCategories)
	if err != nil {
		return nil, err
	}
	remap := map[int64]int64{}
	for _, row := range skipHeader(rows) {
		if len(row) < 3 {
			continue
		}
		oldID, _ := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		name := strings.TrimSpace(row[2])
		if name == "" {
			continue
		}
		kind := models.KindExpense
		if len(row) > 3 {
			if k := models.EntryKind(strings.TrimSpace(row[3])); k.Valid() {
				kind = k
			}
		}
		c, err := st.GetOrCreateCategory(ctx, userID, name, kind)
		if err != nil {
			return nil, err
		}
		if oldID > 0 {
			remap[oldID] = c.ID
		}
	}
	return remap, nil
}

func (s *WorkbookService) importPaymentMethodSheet(ctx context.Context, st *store.Store, userID uuid.UUID, f *excelize.File) (map[int64]int64, error) {
	rows, err := f.GetRows(sheetPaymentMethods)
	if err != nil {
		return nil, err
	}
	remap := map[int64]int64{}
	for _, row := range skipHeader(rows) {
		if len(row) < 3 {
			continue
		}
		oldID, _ := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		name := strings.TrimSpace(row[2])
		if name == "" {
			continue
		}
		m, err := st.GetOrCreatePaymentMethod(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		if oldID > 0 {
			remap[oldID] = m.ID
		}
	}
	return remap, nil
}

func (s *WorkbookService) importEntrySheet(ctx context.Context, st *store.Store, userID uuid.UUID, f *excelize.File, catMap, pmMap map[int64]int64, overwrite bool, result *ImportResult) error {
	rows, err := f.GetRows(sheetEntries)
	if err != nil {
		return err
	}
	for _, row := range skipHeader(rows) {
		if len(row) < 6 {
			continue
		}
		kind := models.EntryKind(strings.TrimSpace(row[2]))
		if !kind.Valid() {
			result.Skipped++
			continue
		}
		description := strings.TrimSpace(row[3])
		amount, err := ParseBRLAmount(row[4])
		if err != nil || !amount.IsPositive() {
			result.Skipped++
			continue
		}
		due, err := time.Parse(backupDateLayout, strings.TrimSpace(row[5]))
		if err != nil {
			result.Skipped++
			continue
		}

		entry := &models.LedgerEntry{
			UserID:        userID,
			Kind:          kind,
			Description:   description,
			Amount:        amount,
			ScheduledDate: due,
		}
		if len(row) > 6 && strings.EqualFold(strings.TrimSpace(row[6]), "true") {
			entry.Realized = true
			if len(row) > 7 {
				if d, err := time.Parse(backupDateLayout, strings.TrimSpace(row[7])); err == nil {
					entry.RealizedDate = &d
				}
			}
			if entry.RealizedDate == nil {
				entry.RealizedDate = &due
			}
		}
		if len(row) > 8 {
			if old, err := strconv.ParseInt(strings.TrimSpace(row[8]), 10, 64); err == nil {
				if id, ok := catMap[old]; ok {
					entry.CategoryID = &id
				}
			}
		}
		if len(row) > 9 {
			if old, err := strconv.ParseInt(strings.TrimSpace(row[9]), 10, 64); err == nil {
				if id, ok := pmMap[old]; ok {
					entry.PaymentMethodID = &id
				}
			}
		}

		if !overwrite {
			_, err := st.FindEntryByNaturalKey(ctx, userID, kind, description, amount, due)
			if err == nil {
				result.Skipped++
				continue
			}
		}
		if err := st.CreateEntry(ctx, entry); err != nil {
			return err
		}
		result.Created++
	}
	return nil
}

func (s *WorkbookService) importConfigSheet(ctx context.Context, st *store.Store, userID uuid.UUID, f *excelize.File) error {
	rows, err := f.GetRows(sheetConfig)
	if err != nil {
		// The sheet is optional in older exports.
		return nil
	}
	cfg, err := st.GetOrCreateConfig(ctx, userID)
	if err != nil {
		return err
	}
	for _, row := range skipHeader(rows) {
		if len(row) < 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(row[0]), "moeda_padrao") {
			cfg.DefaultCurrency = strings.TrimSpace(row[1])
		}
	}
	return st.UpdateConfig(ctx, cfg)
}

func skipHeader(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}

// WrapEncryptedZip stores a workbook inside an AES-256 encrypted zip.
func WrapEncryptedZip(data []byte, filename, password string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Encrypt(filename, password, zip.AES256Encryption)
	if err != nil {
		return nil, fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("write zip entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// UnwrapEncryptedZip opens an encrypted zip and returns the first file's
// contents.
func UnwrapEncryptedZip(data []byte, password string) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	for _, file := range r.File {
		if file.IsEncrypted() {
			file.SetPassword(password)
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read zip entry: %w", err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("zip has no files")
}
