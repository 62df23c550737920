package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/freecash-dev/freecash-api/internal/models"
	"github.com/freecash-dev/freecash-api/internal/store"
)

// Supported statement layouts.
const (
	BankGeneric = "generic"
	BankNubank  = "nubank"
)

// ErrLineSettled is returned when a staged line was already confirmed or
// discarded.
var ErrLineSettled = errors.New("statement line already settled")

var (
	statementMoneyRe = regexp.MustCompile(`R?\$?\s*(-?\d{1,3}(?:\.\d{3})*,\d{2})`)

	statementDateRes = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`),
		regexp.MustCompile(`\b(\d{2}/\d{2}/\d{2})\b`),
		regexp.MustCompile(`\b(\d{2}-\d{2}-\d{4})\b`),
	}

	statementDateLayouts = []string{"02/01/2006", "02/01/06", "02-01-2006"}

	nubankLineRe = regexp.MustCompile(`^(\d{1,2})\s+(jan|fev|mar|abr|mai|jun|jul|ago|set|out|nov|dez)\b`)

	nubankMonths = map[string]time.Month{
		"jan": time.January, "fev": time.February, "mar": time.March,
		"abr": time.April, "mai": time.May, "jun": time.June,
		"jul": time.July, "ago": time.August, "set": time.September,
		"out": time.October, "nov": time.November, "dez": time.December,
	}
)

// ParseStatementLine extracts one movement from a generic statement line. It
// needs both a date and an amount; the description is whatever remains after
// stripping them. Lines that do not qualify report ok=false.
func ParseStatementLine(line string) (*models.ParsedLine, bool) {
	var dateStr string
	var layout string
	for i, re := range statementDateRes {
		if m := re.FindString(line); m != "" {
			dateStr, layout = m, statementDateLayouts[i]
			break
		}
	}
	if dateStr == "" {
		return nil, false
	}
	date, err := time.Parse(layout, dateStr)
	if err != nil {
		return nil, false
	}

	loc := statementMoneyRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return nil, false
	}
	matched := line[loc[0]:loc[1]]
	amount, err := ParseBRLAmount(line[loc[2]:loc[3]])
	if err != nil || amount.IsZero() {
		return nil, false
	}
	// Some banks print the sign before the currency symbol, outside the
	// matched span.
	if !amount.IsNegative() && loc[0] > 0 && line[loc[0]-1] == '-' {
		amount = amount.Neg()
	}

	desc := strings.Replace(line, dateStr, "", 1)
	desc = strings.Replace(desc, matched, "", 1)
	desc = strings.Trim(desc, " -|\t")
	if len(desc) < 3 {
		return nil, false
	}

	kind := models.KindIncome
	if amount.IsNegative() {
		kind = models.KindExpense
		amount = amount.Neg()
	}
	return &models.ParsedLine{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Kind:        kind,
	}, true
}

// ParseNubankLine handles the "DD MMM" card statement layout, which carries
// no year. The year is taken from the reference date, falling back to the
// previous one when the line would land in the future.
func ParseNubankLine(line string, ref time.Time) (*models.ParsedLine, bool) {
	trimmed := strings.TrimSpace(line)
	m := nubankLineRe.FindStringSubmatch(strings.ToLower(trimmed))
	if m == nil {
		return nil, false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, false
	}
	month := nubankMonths[m[2]]
	if day < 1 || day > daysIn(ref.Year(), month) {
		return nil, false
	}
	date := time.Date(ref.Year(), month, day, 0, 0, 0, 0, time.UTC)
	if date.After(ref) {
		date = date.AddDate(-1, 0, 0)
	}

	money := statementMoneyRe.FindStringSubmatch(trimmed)
	if money == nil {
		return nil, false
	}
	amount, err := ParseBRLAmount(money[1])
	if err != nil || amount.IsZero() {
		return nil, false
	}

	desc := trimmed[len(m[0]):]
	desc = strings.Replace(desc, money[0], "", 1)
	desc = strings.Trim(desc, " -|\t")
	if len(desc) < 3 {
		return nil, false
	}

	// Card statements list charges as positive values.
	kind := models.KindExpense
	if amount.IsNegative() {
		kind = models.KindIncome
		amount = amount.Neg()
	}
	return &models.ParsedLine{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Kind:        kind,
	}, true
}

// ParseStatement walks the extracted text line by line. Unparseable lines
// are dropped, never fatal.
func ParseStatement(text, bank string, ref time.Time) []*models.ParsedLine {
	var out []*models.ParsedLine
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var parsed *models.ParsedLine
		var ok bool
		if bank == BankNubank {
			parsed, ok = ParseNubankLine(line, ref)
		} else {
			parsed, ok = ParseStatementLine(line)
		}
		if ok {
			out = append(out, parsed)
		}
	}
	return out
}

// ExtractPDFText flattens a PDF into plain text for the line parsers.
func ExtractPDFText(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// StatementService stages parsed bank statement lines for reconciliation.
type StatementService struct {
	store *store.Store
	log   *zap.Logger
}

func NewStatementService(st *store.Store, log *zap.Logger) *StatementService {
	return &StatementService{store: st, log: log}
}

// ImportPDF parses an uploaded statement and stages its lines. The import
// row records failure when the PDF yields nothing usable.
func (s *StatementService) ImportPDF(ctx context.Context, userID uuid.UUID, filename, bank string, r io.ReaderAt, size int64) (*models.StatementImport, []*models.StatementLine, error) {
	if bank == "" {
		bank = BankGeneric
	}
	si := &models.StatementImport{
		UserID:   userID,
		Filename: filename,
		Bank:     bank,
		Status:   models.StatementPending,
	}
	if err := s.store.CreateStatementImport(ctx, si); err != nil {
		return nil, nil, err
	}

	text, err := ExtractPDFText(r, size)
	if err != nil {
		return s.failImport(ctx, si, err)
	}
	parsed := ParseStatement(text, bank, time.Now().UTC())
	if len(parsed) == 0 {
		return s.failImport(ctx, si, fmt.Errorf("no movements recognized"))
	}

	var lines []*models.StatementLine
	err = s.store.WithTx(ctx, func(st *store.Store) error {
		for _, p := range parsed {
			l := &models.StatementLine{
				ImportID:    si.ID,
				Date:        p.Date,
				Description: p.Description,
				Amount:      p.Amount,
				Kind:        p.Kind,
				Status:      models.LinePending,
			}
			if err := st.CreateStatementLine(ctx, l); err != nil {
				return err
			}
			lines = append(lines, l)
		}
		si.Status = models.StatementProcessed
		si.LinesFound = len(lines)
		return st.UpdateStatementImport(ctx, si)
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.AppendImportLog(ctx, &models.ImportLog{
		UserID:  userID,
		Source:  models.ImportSourceStatement,
		Success: true,
		Message: fmt.Sprintf("staged %d lines from %s", len(lines), filename),
	}); err != nil {
		return nil, nil, err
	}
	s.log.Info("statement staged",
		zap.String("user_id", userID.String()),
		zap.String("bank", bank),
		zap.Int("lines", len(lines)))
	return si, lines, nil
}

func (s *StatementService) failImport(ctx context.Context, si *models.StatementImport, cause error) (*models.StatementImport, []*models.StatementLine, error) {
	si.Status = models.StatementFailed
	si.Error = cause.Error()
	if err := s.store.UpdateStatementImport(ctx, si); err != nil {
		return nil, nil, err
	}
	if err := s.store.AppendImportLog(ctx, &models.ImportLog{
		UserID:  si.UserID,
		Source:  models.ImportSourceStatement,
		Success: false,
		Message: cause.Error(),
	}); err != nil {
		return nil, nil, err
	}
	return nil, nil, cause
}

// ConfirmOptions carries the classification chosen during reconciliation.
type ConfirmOptions struct {
	CategoryID      *int64
	PaymentMethodID *int64
}

// ConfirmLine turns a pending staged line into a realized ledger entry.
func (s *StatementService) ConfirmLine(ctx context.Context, userID uuid.UUID, lineID int64, opts ConfirmOptions) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.store.WithTx(ctx, func(st *store.Store) error {
		line, err := st.GetStatementLine(ctx, userID, lineID)
		if err != nil {
			return err
		}
		if line.Status != models.LinePending {
			return fmt.Errorf("%w: %s", ErrLineSettled, line.Status)
		}
		lineDate := line.Date
		entry = &models.LedgerEntry{
			UserID:          userID,
			Kind:            line.Kind,
			Description:     line.Description,
			Amount:          line.Amount,
			ScheduledDate:   line.Date,
			Realized:        true,
			RealizedDate:    &lineDate,
			CategoryID:      opts.CategoryID,
			PaymentMethodID: opts.PaymentMethodID,
		}
		if err := st.CreateEntry(ctx, entry); err != nil {
			return err
		}
		return st.SetStatementLineStatus(ctx, lineID, models.LineConfirmed, &entry.ID)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DiscardLine marks a pending staged line as not wanted.
func (s *StatementService) DiscardLine(ctx context.Context, userID uuid.UUID, lineID int64) error {
	return s.store.WithTx(ctx, func(st *store.Store) error {
		line, err := st.GetStatementLine(ctx, userID, lineID)
		if err != nil {
			return err
		}
		if line.Status != models.LinePending {
			return fmt.Errorf("%w: %s", ErrLineSettled, line.Status)
		}
		return st.SetStatementLineStatus(ctx, lineID, models.LineDiscarded, nil)
	})
}
