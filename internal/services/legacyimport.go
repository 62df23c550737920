package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/freecash-dev/freecash-api/internal/models"
	"github.com/freecash-dev/freecash-api/internal/store"
)

// Canonical payment method names created on demand during imports.
const (
	MethodCreditCard = "Cartão de Crédito"
	MethodPix        = "PIX"
	MethodBoleto     = "Boleto"
	MethodDebit      = "Débito"
	MethodCredit     = "Crédito"
)

// Canonical categories assigned to imported legacy rows.
const (
	CategoryLegacyIncome  = "Receita"
	CategoryLegacyExpense = "Gastos"
)

// legacyCategories are resolved once per import run and stamped on every
// imported entry.
type legacyCategories struct {
	income  *models.Category
	expense *models.Category
}

func resolveLegacyCategories(ctx context.Context, st *store.Store, userID uuid.UUID) (*legacyCategories, error) {
	income, err := st.GetOrCreateCategory(ctx, userID, CategoryLegacyIncome, models.KindIncome)
	if err != nil {
		return nil, err
	}
	expense, err := st.GetOrCreateCategory(ctx, userID, CategoryLegacyExpense, models.KindExpense)
	if err != nil {
		return nil, err
	}
	return &legacyCategories{income: income, expense: expense}, nil
}

// forKind picks the category id for a row. The spreadsheet had no separate
// investment bucket, so investment rows land with the expenses.
func (c *legacyCategories) forKind(kind models.EntryKind) int64 {
	if kind == models.KindIncome {
		return c.income.ID
	}
	return c.expense.ID
}

// ImportResult counts what one import run did per row.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

var legacyMonths = map[string]time.Month{
	"JANEIRO":   time.January,
	"FEVEREIRO": time.February,
	"MARÇO":     time.March,
	"MARCO":     time.March,
	"ABRIL":     time.April,
	"MAIO":      time.May,
	"JUNHO":     time.June,
	"JULHO":     time.July,
	"AGOSTO":    time.August,
	"SETEMBRO":  time.September,
	"OUTUBRO":   time.October,
	"NOVEMBRO":  time.November,
	"DEZEMBRO":  time.December,
}

// Section headers of the legacy spreadsheet. CARTAO rows are always card
// expenses.
var legacySections = map[string]bool{
	"FIXO PESSOAL": true,
	"FIXO CASA":    true,
	"CARTAO":       true,
	"CARTÃO":       true,
}

var dueDaySuffix = regexp.MustCompile(`(?i)\s*d/(\d{1,2})\s*$`)

// LegacyImportService ingests the year-per-sheet spreadsheet format the
// system replaced.
type LegacyImportService struct {
	store *store.Store
	log   *zap.Logger
}

func NewLegacyImportService(st *store.Store, log *zap.Logger) *LegacyImportService {
	return &LegacyImportService{store: st, log: log}
}

// FifthBusinessDay returns the fifth weekday of a month, the conventional
// Brazilian payday.
func FifthBusinessDay(year int, month time.Month) time.Time {
	count := 0
	for day := 1; day <= daysIn(year, month); day++ {
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
			if count == 5 {
				return d
			}
		}
	}
	return time.Date(year, month, daysIn(year, month), 0, 0, 0, 0, time.UTC)
}

// ParseLegacyLabel splits the optional "d/<day>" due-day suffix off a row
// label. Rows without the suffix fall due on the 1st.
func ParseLegacyLabel(label string) (string, int) {
	day := 1
	if m := dueDaySuffix.FindStringSubmatch(label); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 31 {
			day = n
		}
		label = dueDaySuffix.ReplaceAllString(label, "")
	}
	return strings.TrimSpace(label), day
}

// ParseBRLAmount reads a Brazilian-formatted number ("1.234,56", optionally
// prefixed with R$) or a plain decimal.
func ParseBRLAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}

// LegacyPaymentMethod infers the method name for an imported row. The card
// section always means credit card; otherwise the label keywords decide, then
// the row kind.
func LegacyPaymentMethod(section, label string, kind models.EntryKind) string {
	if section == "CARTAO" || section == "CARTÃO" {
		return MethodCreditCard
	}
	u := strings.ToUpper(label)
	switch {
	case strings.Contains(u, "PIX"):
		return MethodPix
	case strings.Contains(u, "BOLETO"):
		return MethodBoleto
	case strings.Contains(u, "DEBITO") || strings.Contains(u, "DÉBITO"):
		return MethodDebit
	case strings.Contains(u, "CREDITO") || strings.Contains(u, "CRÉDITO"):
		return MethodCredit
	}
	if kind == models.KindIncome {
		return MethodPix
	}
	return MethodBoleto
}

// Import reads the workbook and loads every year-named sheet. The whole run
// happens in one transaction under the import advisory lock, and an
// ImportLog row records the attempt either way.
func (s *LegacyImportService) Import(ctx context.Context, userID uuid.UUID, r io.Reader, overwrite bool, today time.Time) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	result := &ImportResult{}
	err = s.store.WithTx(ctx, func(st *store.Store) error {
		if err := st.AcquireImportLock(ctx); err != nil {
			return err
		}
		cats, err := resolveLegacyCategories(ctx, st, userID)
		if err != nil {
			return err
		}
		for _, sheet := range f.GetSheetList() {
			year, err := strconv.Atoi(strings.TrimSpace(sheet))
			if err != nil || year < 1990 || year > 2100 {
				continue
			}
			rows, err := f.GetRows(sheet)
			if err != nil {
				return fmt.Errorf("sheet %s: %w", sheet, err)
			}
			if err := s.importSheet(ctx, st, userID, cats, year, rows, overwrite, today, result); err != nil {
				return fmt.Errorf("sheet %s: %w", sheet, err)
			}
		}
		return nil
	})

	logErr := s.store.AppendImportLog(ctx, &models.ImportLog{
		UserID:  userID,
		Source:  models.ImportSourceLegacy,
		Success: err == nil,
		Message: importLogMessage(err, fmt.Sprintf("created %d, updated %d, skipped %d", result.Created, result.Updated, result.Skipped)),
	})
	if err != nil {
		return nil, err
	}
	if logErr != nil {
		return nil, logErr
	}
	s.log.Info("legacy spreadsheet imported",
		zap.String("user_id", userID.String()),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *LegacyImportService) importSheet(ctx context.Context, st *store.Store, userID uuid.UUID, cats *legacyCategories, year int, rows [][]string, overwrite bool, today time.Time, result *ImportResult) error {
	monthCols := map[int]time.Month{}
	headerRow := -1
	for i, row := range rows {
		for col, cell := range row {
			if m, ok := legacyMonths[strings.ToUpper(strings.TrimSpace(cell))]; ok {
				monthCols[col] = m
			}
		}
		if len(monthCols) > 0 {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil
	}

	section := ""
	for _, row := range rows[headerRow+1:] {
		if len(row) == 0 {
			continue
		}
		rawLabel := strings.TrimSpace(row[0])
		if rawLabel == "" {
			continue
		}
		upper := strings.ToUpper(rawLabel)

		switch {
		case legacySections[upper]:
			section = upper
			continue
		case upper == "RECEITAS":
			section = ""
			if err := s.importIncomeRow(ctx, st, userID, cats, year, row, monthCols, overwrite, result); err != nil {
				return err
			}
			continue
		case upper == "DESPESAS":
			// Aggregate row, individual expenses come from the sections.
			section = ""
			continue
		}
		if section == "" {
			continue
		}
		if err := s.importExpenseRow(ctx, st, userID, cats, year, section, rawLabel, row, monthCols, overwrite, today, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *LegacyImportService) importIncomeRow(ctx context.Context, st *store.Store, userID uuid.UUID, cats *legacyCategories, year int, row []string, monthCols map[int]time.Month, overwrite bool, result *ImportResult) error {
	for col, month := range monthCols {
		if col >= len(row) {
			continue
		}
		amount, err := ParseBRLAmount(row[col])
		if err != nil || !amount.IsPositive() {
			continue
		}
		due := FifthBusinessDay(year, month)
		catID := cats.forKind(models.KindIncome)
		entry := &models.LedgerEntry{
			UserID:        userID,
			Kind:          models.KindIncome,
			Description:   fmt.Sprintf("Receitas %02d/%04d", int(month), year),
			Amount:        amount,
			ScheduledDate: due,
			Realized:      true,
			RealizedDate:  &due,
			CategoryID:    &catID,
			Legacy:        true,
		}
		setProvenance(entry, year, int(month), "RECEITAS")
		if err := s.upsertLegacyEntry(ctx, st, entry, MethodPix, overwrite, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *LegacyImportService) importExpenseRow(ctx context.Context, st *store.Store, userID uuid.UUID, cats *legacyCategories, year int, section, rawLabel string, row []string, monthCols map[int]time.Month, overwrite bool, today time.Time, result *ImportResult) error {
	label, dueDay := ParseLegacyLabel(rawLabel)
	if label == "" {
		return nil
	}
	kind := models.KindExpense
	if strings.Contains(strings.ToUpper(label), "INVEST") {
		kind = models.KindInvestment
	}
	method := LegacyPaymentMethod(section, label, kind)

	for col, month := range monthCols {
		if col >= len(row) {
			continue
		}
		amount, err := ParseBRLAmount(row[col])
		if err != nil || !amount.IsPositive() {
			continue
		}
		day := dueDay
		if last := daysIn(year, month); day > last {
			day = last
		}
		due := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		catID := cats.forKind(kind)
		entry := &models.LedgerEntry{
			UserID:        userID,
			Kind:          kind,
			Description:   label,
			Amount:        amount,
			ScheduledDate: due,
			CategoryID:    &catID,
			Legacy:        true,
		}
		if due.Before(today) {
			entry.Realized = true
			entry.RealizedDate = &due
		}
		setProvenance(entry, year, int(month), rawLabel)
		if err := s.upsertLegacyEntry(ctx, st, entry, method, overwrite, result); err != nil {
			return err
		}
	}
	return nil
}

func setProvenance(e *models.LedgerEntry, year, month int, label string) {
	e.OriginYear = &year
	e.OriginMonth = &month
	e.OriginLabel = &label
}

// upsertLegacyEntry applies the two-phase duplicate check: an exact natural
// key match first, then a provenance match on (year, month, label). A match
// is fully overwritten when overwrite is set, otherwise skipped.
func (s *LegacyImportService) upsertLegacyEntry(ctx context.Context, st *store.Store, entry *models.LedgerEntry, methodName string, overwrite bool, result *ImportResult) error {
	method, err := st.GetOrCreatePaymentMethod(ctx, entry.UserID, methodName)
	if err != nil {
		return err
	}
	entry.PaymentMethodID = &method.ID

	existing, err := st.FindEntryByNaturalKey(ctx, entry.UserID, entry.Kind, entry.Description, entry.Amount, entry.ScheduledDate)
	if errors.Is(err, store.ErrNotFound) {
		existing, err = st.FindEntryByProvenance(ctx, entry.UserID, *entry.OriginYear, *entry.OriginMonth, *entry.OriginLabel)
	}
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
