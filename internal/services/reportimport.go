package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/freecash-dev/freecash-api/internal/models"
	"github.com/freecash-dev/freecash-api/internal/store"
)

// reportHeaderScan is how many leading rows are inspected for the header.
const reportHeaderScan = 10

const reportDateLayout = "02/01/2006"

// ReportImportService re-ingests the xlsx reports the application itself
// exports, matching rows against existing entries by date, description and
// amount.
type ReportImportService struct {
	store *store.Store
	log   *zap.Logger
}

func NewReportImportService(st *store.Store, log *zap.Logger) *ReportImportService {
	return &ReportImportService{store: st, log: log}
}

// ReportKind maps the report's Tipo column to an entry kind.
func ReportKind(tipo string) (models.EntryKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(tipo)) {
	case "RECEITA", "R":
		return models.KindIncome, true
	case "DESPESA", "D":
		return models.KindExpense, true
	case "INVESTIMENTO", "I":
		return models.KindInvestment, true
	}
	return "", false
}

// reportRealized maps the report's Status column.
func reportRealized(status string) bool {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAGO", "REALIZADO", "RECEBIDO", "SIM":
		return true
	}
	return false
}

type reportColumns struct {
	date, tipo, description, category, amount, status int
}

// findReportHeader looks for the header row, recognized by "DATA" in its
// first cell, and maps the expected column titles to indexes.
func findReportHeader(rows [][]string) (int, *reportColumns) {
	for i := 0; i < len(rows) && i < reportHeaderScan; i++ {
		row := rows[i]
		if len(row) == 0 || !strings.EqualFold(strings.TrimSpace(row[0]), "DATA") {
			continue
		}
		cols := &reportColumns{date: -1, tipo: -1, description: -1, category: -1, amount: -1, status: -1}
		for j, cell := range row {
			switch strings.ToUpper(strings.TrimSpace(cell)) {
			case "DATA":
				cols.date = j
			case "TIPO":
				cols.tipo = j
			case "DESCRIÇÃO", "DESCRICAO":
				cols.description = j
			case "CATEGORIA":
				cols.category = j
			case "VALOR (R$)", "VALOR":
				cols.amount = j
			case "STATUS":
				cols.status = j
			}
		}
		if cols.date >= 0 && cols.description >= 0 && cols.amount >= 0 {
			return i, cols
		}
	}
	return -1, nil
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Import loads a report workbook. Rows that cannot be parsed are skipped so
// one bad line never sinks the run; summary rows (TOTAL, SALDO) are ignored.
func (s *ReportImportService) Import(ctx context.Context, userID uuid.UUID, r io.Reader, overwrite bool) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	headerRow, cols := findReportHeader(rows)
	if cols == nil {
		return nil, fmt.Errorf("report header not found")
	}

	result := &ImportResult{}
	err = s.store.WithTx(ctx, func(st *store.Store) error {
		if err := st.AcquireImportLock(ctx); err != nil {
			return err
		}
		for _, row := range rows[headerRow+1:] {
			if err := s.importRow(ctx, st, userID, row, cols, overwrite, result); err != nil {
				return err
			}
		}
		return nil
	})

	logErr := s.store.AppendImportLog(ctx, &models.ImportLog{
		UserID:  userID,
		Source:  models.ImportSourceReport,
		Success: err == nil,
		Message: importLogMessage(err, fmt.Sprintf("created %d, updated %d, skipped %d", result.Created, result.Updated, result.Skipped)),
	})
	if err != nil {
		return nil, err
	}
	if logErr != nil {
		return nil, logErr
	}
	s.log.Info("report imported",
		zap.String("user_id", userID.String()),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *ReportImportService) importRow(ctx context.Context, st *store.Store, userID uuid.UUID, row []string, cols *reportColumns, overwrite bool, result *ImportResult) error {
	first := strings.ToUpper(cellAt(row, 0))
	if first == "" || strings.Contains(first, "TOTAL") || strings.Contains(first, "SALDO") {
		return nil
	}
	due, err := time.Parse(reportDateLayout, cellAt(row, cols.date))
	if err != nil {
		result.Skipped++
		return nil
	}
	description := cellAt(row, cols.description)
	if description == "" {
		result.Skipped++
		return nil
	}
	amount, err := ParseBRLAmount(cellAt(row, cols.amount))
	if err != nil || !amount.IsPositive() {
		result.Skipped++
		return nil
	}
	kind, ok := ReportKind(cellAt(row, cols.tipo))
	if !ok {
		result.Skipped++
		return nil
	}

	entry := &models.LedgerEntry{
		UserID:        userID,
		Kind:          kind,
		Description:   description,
		Amount:        amount,
		ScheduledDate: due,
	}
	if reportRealized(cellAt(row, cols.status)) {
		entry.Realized = true
		entry.RealizedDate = &due
	}
	if name := cellAt(row, cols.category); name != "" {
		cat, err := st.GetOrCreateCategory(ctx, userID, name, kind)
		if err != nil {
			return err
		}
		entry.CategoryID = &cat.ID
	}

	existing, err := st.FindEntryByReportKey(ctx, userID, due, description, amount)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if existing != nil {
		if !overwrite {
			result.Skipped++
			return nil
		}
		entry.ID = existing.ID
		entry.UUID = existing.UUID
		if err := st.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		result.Updated++
		return nil
	}
	if err := st.CreateEntry(ctx, entry); err != nil {
		return err
	}
	result.Created++
	return nil
}
